package clones

import "sort"

// idsHash combines a run of interned token ids into a single display hash
// (FNV-1a), used only for Instance.NormalizedHash reporting.
func idsHash(ids []int32) uint64 {
	var h uint64 = 14695981039346656037
	for _, id := range ids {
		h ^= uint64(uint32(id))
		h *= 1099511628211
	}
	return h
}

// corpusPos records which file/token/line a position in the concatenated
// corpus token array came from. Sentinel positions (file == "") separate
// files so a suffix's shared prefix can never cross a file boundary into a
// match that doesn't actually exist in either file.
type corpusPos struct {
	file  string
	index int // index into that file's own token array
	line  uint32
}

// internTable maps distinct token texts to small positive integers so the
// suffix array works over a plain []int32 alphabet instead of strings.
type internTable struct {
	ids  map[string]int32
	next int32
}

func newInternTable() *internTable {
	return &internTable{ids: make(map[string]int32), next: 1}
}

func (t *internTable) intern(text string) int32 {
	if id, ok := t.ids[text]; ok {
		return id
	}
	id := t.next
	t.next++
	t.ids[text] = id
	return id
}

// buildCorpus concatenates every file's token texts into one integer array,
// separating files with a unique negative sentinel so no suffix's matched
// prefix can span two files.
func buildCorpus(files []fileTokens, textOf func(fileTokens) []string, lineOf func(fileTokens) []uint32) ([]int32, []corpusPos) {
	interner := newInternTable()
	var ids []int32
	var positions []corpusPos

	var sentinel int32 = -1
	for _, f := range files {
		texts := textOf(f)
		lines := lineOf(f)
		for i, text := range texts {
			ids = append(ids, interner.intern(text))
			positions = append(positions, corpusPos{file: f.path, index: i, line: lines[i]})
		}
		ids = append(ids, sentinel)
		positions = append(positions, corpusPos{})
		sentinel--
	}

	return ids, positions
}

// buildSuffixArray constructs the suffix array of s via prefix doubling:
// sort suffixes by their first 2^k characters, refining the rank at each
// step, until ranks are unique or k exceeds len(s).
func buildSuffixArray(s []int32) []int32 {
	n := len(s)
	sa := make([]int32, n)
	rank := make([]int32, n)
	tmp := make([]int32, n)
	for i := 0; i < n; i++ {
		sa[i] = int32(i)
		rank[i] = s[i]
	}

	for k := 1; k < n; k *= 2 {
		kk := int32(k)
		less := func(a, b int32) bool {
			if rank[a] != rank[b] {
				return rank[a] < rank[b]
			}
			ra, rb := int32(-1), int32(-1)
			if int(a)+k < n {
				ra = rank[a+kk]
			}
			if int(b)+k < n {
				rb = rank[b+kk]
			}
			return ra < rb
		}
		sort.Slice(sa, func(i, j int) bool { return less(sa[i], sa[j]) })

		tmp[sa[0]] = 0
		for i := 1; i < n; i++ {
			tmp[sa[i]] = tmp[sa[i-1]]
			if less(sa[i-1], sa[i]) {
				tmp[sa[i]]++
			}
		}
		copy(rank, tmp)
		if rank[sa[n-1]] == int32(n-1) {
			break
		}
	}

	return sa
}

// lcpArray computes, via Kasai's algorithm, the length of the common prefix
// shared by each suffix and its predecessor in suffix-array order.
func lcpArray(s []int32, sa []int32) []int32 {
	n := len(s)
	rankOf := make([]int32, n)
	for i, p := range sa {
		rankOf[p] = int32(i)
	}

	lcp := make([]int32, n)
	var h int32
	for i := 0; i < n; i++ {
		if rankOf[i] == 0 {
			h = 0
			continue
		}
		j := sa[rankOf[i]-1]
		for int(i)+int(h) < n && int(j)+int(h) < n && s[int(i)+int(h)] == s[int(j)+int(h)] {
			h++
		}
		lcp[rankOf[i]] = h
		if h > 0 {
			h--
		}
	}
	return lcp
}

// suffixArrayGroups clusters the recurring windows found by the suffix array
// back into clone groups, grouping windows whose corpus positions belonged
// to the same LCP run and applying the same overlap rule as the rolling-hash
// detector.
func suffixArrayGroups(ids []int32, positions []corpusPos, minTokens int) [][]tokenWindow {
	n := len(ids)
	if n < minTokens {
		return nil
	}

	sa := buildSuffixArray(ids)
	lcp := lcpArray(ids, sa)

	var groups [][]tokenWindow
	var run []int32
	flush := func() {
		if len(run) < 2 {
			run = nil
			return
		}
		var windows []tokenWindow
		for _, p := range run {
			start := int(p)
			if start+minTokens > n {
				continue
			}
			pos := positions[start]
			if pos.file == "" {
				continue
			}
			endPos := positions[start+minTokens-1]
			if endPos.file != pos.file {
				continue
			}
			windows = append(windows, tokenWindow{
				file:      pos.file,
				startIdx:  pos.index,
				endIdx:    pos.index + minTokens - 1,
				startLine: pos.line,
				endLine:   endPos.line,
				hash:      idsHash(ids[start : start+minTokens]),
			})
		}
		accepted := acceptNonOverlapping(windows, minTokens)
		if len(accepted) >= 2 {
			groups = append(groups, accepted)
		}
		run = nil
	}

	for i := 0; i < n; i++ {
		if i == 0 || lcp[i] < int32(minTokens) {
			flush()
			run = []int32{sa[i]}
		} else {
			run = append(run, sa[i])
		}
	}
	flush()

	return groups
}
