package clones

import "strings"

// tokenWindow is a fixed-length run of consecutive tokens inside one file's
// token stream, as produced by a sliding-window scan.
type tokenWindow struct {
	file      string
	startIdx  int // inclusive, into the file's token array
	endIdx    int // inclusive
	startLine uint32
	endLine   uint32
	hash      uint64
	text      string // joined window tokens, used to verify hash-bucket membership
}

// overlapLen returns how many token positions two same-file windows share.
func overlapLen(a, b tokenWindow) int {
	lo := a.startIdx
	if b.startIdx > lo {
		lo = b.startIdx
	}
	hi := a.endIdx
	if b.endIdx < hi {
		hi = b.endIdx
	}
	if hi < lo {
		return 0
	}
	return hi - lo + 1
}

// acceptNonOverlapping greedily keeps windows in input order, rejecting any
// window that overlaps an already-accepted window in the same file by more
// than minTokens/2 token positions. This is the dedup rule shared by every
// exact/near sliding-window detector: three strides over a long duplicated
// block should not be reported as three separate (mostly-overlapping)
// clones, but strides that only share a small tail/head are independent.
func acceptNonOverlapping(windows []tokenWindow, minTokens int) []tokenWindow {
	limit := minTokens / 2
	var accepted []tokenWindow
	for _, w := range windows {
		conflict := false
		for _, a := range accepted {
			if a.file != w.file {
				continue
			}
			if overlapLen(a, w) > limit {
				conflict = true
				break
			}
		}
		if !conflict {
			accepted = append(accepted, w)
		}
	}
	return accepted
}

func joinWindowText(texts []string, start, end int) string {
	return strings.Join(texts[start:end+1], "\x1f")
}
