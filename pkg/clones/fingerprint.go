package clones

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/clonewatch/pkg/parser"
)

// fingerprintSentinel is mixed into a subtree's hash on the way back up the
// traversal, so that two subtrees with the same multiset of child hashes but
// different nesting depth don't collide.
const fingerprintSentinel uint64 = 0xDEADBEEF

// astFingerprint summarizes one function body's shape: a structural hash of
// its node-kind tree, plus the size counters used to gate false positives
// (a hash collision between a 5-node body and a 500-node body is not a
// clone).
type astFingerprint struct {
	file      string
	startLine uint32
	endLine   uint32
	rootKind  string
	hash      uint64
	nodeCount int
	maxDepth  int
}

// minimumFingerprintNodes rejects bodies too small for a structural match to
// be meaningful (an empty `{}` block would otherwise "clone" every other
// empty block in the project).
const minimumFingerprintNodes = 10

// fingerprintFunctions parses content and computes a structural fingerprint
// for every function/method body found, by walking tree-sitter's raw parse
// tree directly. This reaches past the pkg/ast.Provider abstraction (which
// only exposes declaration-level spans, not node kinds) on purpose: fixed,
// language-specific node-kind hashing belongs next to pkg/parser's own
// language table, the same layering pkg/ast/treesitter itself sits on.
func fingerprintFunctions(psr *parser.Parser, path string, content []byte) ([]astFingerprint, error) {
	lang := parser.DetectLanguage(path)
	result, err := psr.Parse(content, lang, path)
	if err != nil {
		return nil, err
	}

	fns := parser.GetFunctions(result)
	out := make([]astFingerprint, 0, len(fns))
	for _, fn := range fns {
		if fn.Body == nil {
			continue
		}
		hash, count, depth := fingerprintNode(fn.Body, 0)
		if count < minimumFingerprintNodes {
			continue
		}
		out = append(out, astFingerprint{
			file:      path,
			startLine: fn.StartLine,
			endLine:   fn.EndLine,
			rootKind:  fn.Body.Type(),
			hash:      hash,
			nodeCount: count,
			maxDepth:  depth,
		})
	}
	return out, nil
}

// fingerprintNode hashes a subtree's shape: each node contributes its kind
// label (never its text, so renamed identifiers and different literal
// values don't change the hash), combined with its children via a
// polynomial accumulator, then mixed with fingerprintSentinel as the
// recursion unwinds to distinguish nesting depth.
func fingerprintNode(node *sitter.Node, depth int) (hash uint64, count int, maxDepth int) {
	const base = 31
	h := kindHash(node.Type())
	count = 1
	maxDepth = depth

	childCount := int(node.ChildCount())
	for i := 0; i < childCount; i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		ch, cc, cd := fingerprintNode(child, depth+1)
		h = h*base + ch
		count += cc
		if cd > maxDepth {
			maxDepth = cd
		}
	}

	return h ^ fingerprintSentinel, count, maxDepth
}

func kindHash(kind string) uint64 {
	var h uint64 = 1469598103934665603 // FNV-1a offset basis
	for i := 0; i < len(kind); i++ {
		h ^= uint64(kind[i])
		h *= 1099511628211 // FNV-1a prime
	}
	return h
}

// fingerprintSimilarity approximates structural similarity from relative
// size, since two fingerprints already only collide when their full
// node-kind shape (and depth) matches exactly.
func fingerprintSimilarity(a, b astFingerprint) float64 {
	small, large := a.nodeCount, b.nodeCount
	if small > large {
		small, large = large, small
	}
	if large == 0 {
		return 0
	}
	return float64(small) / float64(large)
}

// fingerprintGroups clusters fingerprints that hash equal, share a root
// node kind, are close enough in size, and (within the same file) don't
// overlap, into semantic clone groups.
func fingerprintGroups(fingerprints []astFingerprint, minSimilarity float64) [][]astFingerprint {
	buckets := make(map[uint64][]astFingerprint)
	for _, f := range fingerprints {
		buckets[f.hash] = append(buckets[f.hash], f)
	}

	var groups [][]astFingerprint
	for _, bucket := range buckets {
		if len(bucket) < 2 {
			continue
		}

		var accepted []astFingerprint
		for _, f := range bucket {
			conflict := false
			for _, a := range accepted {
				if a.rootKind != f.rootKind {
					conflict = true
					break
				}
				if fingerprintSimilarity(a, f) < minSimilarity {
					conflict = true
					break
				}
				if a.file == f.file && a.startLine <= f.endLine && f.startLine <= a.endLine {
					conflict = true
					break
				}
			}
			if !conflict {
				accepted = append(accepted, f)
			}
		}

		if len(accepted) >= 2 {
			groups = append(groups, accepted)
		}
	}
	return groups
}
