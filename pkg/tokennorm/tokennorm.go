// Package tokennorm tokenizes source fragments and normalizes identifiers and
// literals so that structurally equivalent code compares equal regardless of
// naming or literal values. It is shared by every detector in pkg/clones.
package tokennorm

import (
	"regexp"
	"strings"

	"github.com/panbanda/clonewatch/pkg/ast"
)

// Kind classifies a Token.
type Kind string

const (
	KindKeyword    Kind = "keyword"
	KindIdentifier Kind = "identifier"
	KindLiteral    Kind = "literal"
	KindOperator   Kind = "operator"
	KindComment    Kind = "comment"
	KindUnknown    Kind = "unknown"
)

// Token is a single lexical unit with its source text and position.
type Token struct {
	Kind   Kind
	Text   string
	Line   int
	Column int
}

// TokenSequence is a per-file ordered token stream plus the raw source lines,
// so a detector can extract a snippet by line range without re-reading disk.
type TokenSequence struct {
	File        string
	Tokens      []Token
	SourceLines []string
}

// NormalizedToken is the canonicalized form of a Token used for comparison
// and hashing; identifiers and literals may be rewritten to placeholders.
type NormalizedToken struct {
	Text   string
	Line   int
	Column int
}

// Options controls which normalizations Normalize applies.
type Options struct {
	NormalizeIdentifiers bool
	NormalizeLiterals    bool
	IgnoreComments       bool
}

// TokensFromSource tokenizes file content via an ast.Provider's leaf-token
// stream (tree-sitter backed), grounding tokenization in the same parser the
// rest of the core uses rather than a hand-rolled lexer.
func TokensFromSource(provider ast.Provider, path string, content []byte) (TokenSequence, error) {
	file, err := provider.ParseSource(path, content)
	if err != nil {
		return TokenSequence{}, err
	}

	leaves := file.Tokens()
	tokens := make([]Token, len(leaves))
	for i, t := range leaves {
		tokens[i] = Token{
			Kind:   kindFromAST(t.Kind),
			Text:   t.Text,
			Line:   t.Line,
			Column: t.Column,
		}
	}

	return TokenSequence{
		File:        path,
		Tokens:      tokens,
		SourceLines: strings.Split(string(content), "\n"),
	}, nil
}

func kindFromAST(k ast.TokenKind) Kind {
	switch k {
	case ast.TokKeyword:
		return KindKeyword
	case ast.TokIdentifier:
		return KindIdentifier
	case ast.TokLiteral:
		return KindLiteral
	case ast.TokComment:
		return KindComment
	case ast.TokOperator:
		return KindOperator
	default:
		return KindUnknown
	}
}

// paramPlaceholder matches closure-shorthand identifiers like `$0`/`$1`.
var paramPlaceholder = regexp.MustCompile(`^\$[0-9]+$`)

// preservedIdentifiers are common built-in type and keyword-like names kept
// verbatim instead of collapsed to $ID, so e.g. `int` vs `string` parameters
// still distinguish two fragments that are otherwise structurally identical.
var preservedIdentifiers = map[string]bool{
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"float32": true, "float64": true, "bool": true, "byte": true, "rune": true,
	"string": true, "error": true, "any": true, "void": true,
	"String": true, "Int": true, "Bool": true, "Double": true, "Float": true,
	"Any": true, "Self": true, "self": true, "this": true, "super": true,
	"None": true, "nil": true, "null": true, "undefined": true,
	"true": true, "false": true,
}

// Normalizer canonicalizes identifiers and literals to the placeholder
// scheme of spec.md: $ID for identifiers, $PARAM for closure-shorthand
// parameters, $NUM/$STR for numeric/quoted literals. It is a stateless,
// pure mapping from token text to placeholder text (kept as a struct for a
// consistent call shape with the rest of the detectors, not for any
// internal state).
type Normalizer struct{}

// NewNormalizer returns a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize rewrites a token sequence according to opts, dropping comments
// when IgnoreComments is set and returning the normalized text for every
// remaining token.
func (n *Normalizer) Normalize(seq TokenSequence, opts Options) []NormalizedToken {
	result := make([]NormalizedToken, 0, len(seq.Tokens))
	for _, tok := range seq.Tokens {
		if opts.IgnoreComments && tok.Kind == KindComment {
			continue
		}
		text := n.normalizeToken(tok, opts)
		if text == "" {
			continue
		}
		result = append(result, NormalizedToken{Text: text, Line: tok.Line, Column: tok.Column})
	}
	return result
}

func (n *Normalizer) normalizeToken(tok Token, opts Options) string {
	switch tok.Kind {
	case KindKeyword, KindOperator:
		return tok.Text
	case KindLiteral:
		if !opts.NormalizeLiterals {
			return tok.Text
		}
		return n.canonicalizeLiteral(tok.Text)
	case KindIdentifier:
		if !opts.NormalizeIdentifiers {
			return tok.Text
		}
		return n.canonicalize(tok.Text)
	default:
		return tok.Text
	}
}

// canonicalize maps an identifier to the spec's uniform placeholder: every
// renamed-but-equivalent identifier collapses to the same text, which is
// what lets two structurally identical fragments compare equal regardless
// of variable naming.
func (n *Normalizer) canonicalize(name string) string {
	if preservedIdentifiers[name] {
		return name
	}
	if paramPlaceholder.MatchString(name) {
		return "$PARAM"
	}
	return "$ID"
}

// canonicalizeLiteral maps a literal's raw text to $NUM or $STR per the
// numeric-prefixed / quote-prefixed rule of spec.md §3.
func (n *Normalizer) canonicalizeLiteral(text string) string {
	if text == "" {
		return text
	}
	c := text[0]
	if c == '"' || c == '\'' || c == '`' {
		return "$STR"
	}
	if (c >= '0' && c <= '9') || (c == '-' && len(text) > 1 && text[1] >= '0' && text[1] <= '9') {
		return "$NUM"
	}
	return "$STR"
}
