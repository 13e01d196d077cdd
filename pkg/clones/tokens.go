package clones

import (
	"github.com/panbanda/clonewatch/pkg/ast"
	"github.com/panbanda/clonewatch/pkg/ast/treesitter"
	"github.com/panbanda/clonewatch/pkg/parser"
	"github.com/panbanda/clonewatch/pkg/tokennorm"
)

// fileTokens is one file's raw and normalized token streams, aligned index
// for index (normalized[i] is the canonical form of original[i]) so a
// detector can map a normalized-token window back to its original text,
// plus the function spans the same parse already exposed.
type fileTokens struct {
	path       string
	original   []tokennorm.Token
	normalized []tokennorm.NormalizedToken
	functions  []ast.FunctionDecl
}

// tokenize parses content once, via the worker's own *parser.Parser wrapped
// as an ast.Provider, and derives both the token streams and the function
// spans from that single parse rather than re-parsing per concern.
func (a *Analyzer) tokenize(psr *parser.Parser, path string, content []byte) (fileTokens, error) {
	provider := treesitter.NewFromParser(psr)
	file, err := provider.ParseSource(path, content)
	if err != nil {
		return fileTokens{}, err
	}

	leaves := file.Tokens()
	tokens := make([]tokennorm.Token, len(leaves))
	for i, t := range leaves {
		tokens[i] = tokennorm.Token{Kind: kindFromASTToken(t.Kind), Text: t.Text, Line: t.Line, Column: t.Column}
	}
	seq := tokennorm.TokenSequence{File: path, Tokens: tokens}

	// IgnoreComments is forced off here regardless of a.config.IgnoreComments:
	// the rolling-hash/suffix-array detectors need original and normalized
	// arrays index-aligned one-for-one, which dropping tokens would break.
	// Comment tokens are excluded later, per-detector, where it matters.
	normalized := a.normalizer.Normalize(seq, tokennorm.Options{
		NormalizeIdentifiers: a.config.NormalizeIdentifiers,
		NormalizeLiterals:    a.config.NormalizeLiterals,
		IgnoreComments:       false,
	})

	return fileTokens{path: path, original: tokens, normalized: normalized, functions: file.Functions()}, nil
}

func kindFromASTToken(k ast.TokenKind) tokennorm.Kind {
	switch k {
	case ast.TokKeyword:
		return tokennorm.KindKeyword
	case ast.TokIdentifier:
		return tokennorm.KindIdentifier
	case ast.TokLiteral:
		return tokennorm.KindLiteral
	case ast.TokComment:
		return tokennorm.KindComment
	case ast.TokOperator:
		return tokennorm.KindOperator
	default:
		return tokennorm.KindUnknown
	}
}

func rawTexts(ft fileTokens) []string {
	texts := make([]string, len(ft.original))
	for i, t := range ft.original {
		texts[i] = t.Text
	}
	return texts
}

func normalizedTexts(ft fileTokens) []string {
	texts := make([]string, len(ft.normalized))
	for i, t := range ft.normalized {
		texts[i] = t.Text
	}
	return texts
}

func rawLines(ft fileTokens) []uint32 {
	lines := make([]uint32, len(ft.original))
	for i, t := range ft.original {
		lines[i] = uint32(t.Line)
	}
	return lines
}
