package clones

import (
	"github.com/panbanda/clonewatch/pkg/tokennorm"
)

// codeFragment is a function-level unit fed to the MinHash+LSH candidate
// search: the normalized-token text of one function body, used to estimate
// Jaccard similarity between functions too far apart (or too numerous) to
// compare pairwise directly.
type codeFragment struct {
	file           string
	startLine      uint32
	endLine        uint32
	normalizedHash uint64
	signature      *MinHashSignature
	tokens         []string
}

// fragmentFromTokens builds a codeFragment from ft's precomputed normalized
// tokens whose line falls within [startLine, endLine]. Returns nil if the
// fragment has fewer than minTokens tokens.
func fragmentFromTokens(ft fileTokens, startLine, endLine uint32, ignoreComments bool, minTokens int) *codeFragment {
	var texts []string
	for i, tok := range ft.original {
		if tok.Line < int(startLine) || tok.Line > int(endLine) {
			continue
		}
		if ignoreComments && tok.Kind == tokennorm.KindComment {
			continue
		}
		texts = append(texts, ft.normalized[i].Text)
	}

	if len(texts) < minTokens {
		return nil
	}

	return &codeFragment{
		file:      ft.path,
		startLine: startLine,
		endLine:   endLine,
		tokens:    texts,
	}
}
