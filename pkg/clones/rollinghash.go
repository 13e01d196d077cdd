package clones

import "github.com/cespare/xxhash/v2"

// Rolling-hash polynomial parameters. A fixed base/modulus keeps the hash of
// a window recomputable in O(1) as it slides forward one token at a time,
// rather than O(minTokens) per step.
const (
	rollingBase    int64 = 31
	rollingModulus int64 = 1000000007
)

// tokenValue maps a token's text to the polynomial's per-position value. Two
// equal texts always map to the same value, so equal windows always hash
// equal; collisions across different texts are resolved afterward by
// comparing the window's actual joined text.
func tokenValue(text string) int64 {
	return int64(xxhash.Sum64String(text) % uint64(rollingModulus))
}

// slidingWindows scans one file's token texts and returns every contiguous
// window of length minTokens, hashed with a rolling polynomial hash so that
// windows[i+1] is derived from windows[i] in constant time.
func slidingWindows(file string, texts []string, lines []uint32, minTokens int) []tokenWindow {
	n := len(texts)
	if minTokens <= 0 || n < minTokens {
		return nil
	}

	vals := make([]int64, n)
	for i, t := range texts {
		vals[i] = tokenValue(t)
	}

	var bpow int64 = 1
	for i := 0; i < minTokens-1; i++ {
		bpow = (bpow * rollingBase) % rollingModulus
	}

	var h int64
	for i := 0; i < minTokens; i++ {
		h = (h*rollingBase + vals[i]) % rollingModulus
	}

	windows := make([]tokenWindow, 0, n-minTokens+1)
	addWindow := func(start int) {
		end := start + minTokens - 1
		windows = append(windows, tokenWindow{
			file:      file,
			startIdx:  start,
			endIdx:    end,
			startLine: lines[start],
			endLine:   lines[end],
			hash:      uint64(h),
			text:      joinWindowText(texts, start, end),
		})
	}
	addWindow(0)

	for start := 1; start+minTokens-1 < n; start++ {
		removed := vals[start-1]
		added := vals[start+minTokens-1]
		h = ((h-removed*bpow)%rollingModulus + rollingModulus*rollingModulus) % rollingModulus
		h = (h*rollingBase + added) % rollingModulus
		addWindow(start)
	}

	return windows
}

// exactGroups buckets windows by rolling hash, verifies bucket membership by
// comparing the windows' actual token text (hash collisions happen but must
// not produce false clones), and applies the overlap rule per text-equal
// cluster. Each returned group has at least two non-overlapping members.
func exactGroups(windows []tokenWindow, minTokens int) [][]tokenWindow {
	buckets := make(map[uint64][]tokenWindow)
	for _, w := range windows {
		buckets[w.hash] = append(buckets[w.hash], w)
	}

	var groups [][]tokenWindow
	for _, bucket := range buckets {
		if len(bucket) < 2 {
			continue
		}
		clusters := make(map[string][]tokenWindow)
		for _, w := range bucket {
			clusters[w.text] = append(clusters[w.text], w)
		}
		for _, cluster := range clusters {
			if len(cluster) < 2 {
				continue
			}
			accepted := acceptNonOverlapping(cluster, minTokens)
			if len(accepted) >= 2 {
				groups = append(groups, accepted)
			}
		}
	}
	return groups
}
