package clones

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// computeMinHash computes a MinHash signature using k-shingles.
// Uses blake3-hashed shingles and bit-mixed seeds for MinHash.
func (a *Analyzer) computeMinHash(tokens []string) *MinHashSignature {
	shingles := generateKShingles(tokens, a.config.ShingleSize)

	signature := &MinHashSignature{
		Values: make([]uint64, a.config.NumHashFunctions),
	}
	for i := range signature.Values {
		signature.Values[i] = ^uint64(0)
	}

	for _, shingleHash := range shingles {
		for i := 0; i < a.config.NumHashFunctions; i++ {
			h := hashUint64WithSeed(shingleHash, uint64(i))
			if h < signature.Values[i] {
				signature.Values[i] = h
			}
		}
	}

	return signature
}

// hashUint64WithSeed mixes a value with a seed (murmur-style finalizer),
// avoiding per-call allocations that a keyed hash function would incur.
func hashUint64WithSeed(value uint64, seed uint64) uint64 {
	h := value ^ seed
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// generateKShingles creates k-shingles from tokens using blake3 hashing,
// returning a set of uint64 hashes instead of strings for efficiency.
func generateKShingles(tokens []string, k int) []uint64 {
	if len(tokens) < k {
		if len(tokens) > 0 {
			h := blake3.New()
			for _, t := range tokens {
				h.Write([]byte(t))
			}
			sum := h.Sum(nil)
			return []uint64{binary.LittleEndian.Uint64(sum[:8])}
		}
		return nil
	}

	shingleSet := make(map[uint64]struct{})
	h := blake3.New()

	for i := 0; i <= len(tokens)-k; i++ {
		h.Reset()
		for j := i; j < i+k; j++ {
			h.Write([]byte(tokens[j]))
		}
		sum := h.Sum(nil)
		hash := binary.LittleEndian.Uint64(sum[:8])
		shingleSet[hash] = struct{}{}
	}

	shingles := make([]uint64, 0, len(shingleSet))
	for hash := range shingleSet {
		shingles = append(shingles, hash)
	}

	return shingles
}

// hashBand computes a hash for a band portion of the signature.
// Uses FNV-1a style combining without allocations.
func hashBand(values []uint64, seed uint64) uint64 {
	const fnvPrime = 0x00000100000001B3
	h := seed ^ 0xcbf29ce484222325 // FNV offset basis
	for _, v := range values {
		h ^= v
		h *= fnvPrime
	}
	return h
}

type clonePair struct {
	idxA       int
	idxB       int
	similarity float64
}

// findClonePairsLSH uses Locality-Sensitive Hashing for O(n) average-case
// candidate filtering over function-level fragments, feeding the Type-3
// semantic detector with matches the exact AST-fingerprint hash misses
// (different statement order, added/removed lines) but that still score
// above the similarity threshold.
func (a *Analyzer) findClonePairsLSH(fragments []codeFragment) []clonePair {
	bands := a.config.NumBands
	rowsPerBand := a.config.RowsPerBand

	lshBuckets := make([]map[uint64][]int, bands)
	for i := range lshBuckets {
		lshBuckets[i] = make(map[uint64][]int)
	}

	for idx, fragment := range fragments {
		if fragment.signature == nil || len(fragment.signature.Values) == 0 {
			continue
		}
		for band := 0; band < bands; band++ {
			start := band * rowsPerBand
			end := start + rowsPerBand
			if end > len(fragment.signature.Values) {
				end = len(fragment.signature.Values)
			}
			if start >= end {
				continue
			}

			bandHash := hashBand(fragment.signature.Values[start:end], uint64(band))
			lshBuckets[band][bandHash] = append(lshBuckets[band][bandHash], idx)
		}
	}

	candidatePairs := make(map[uint64]struct{})
	for _, bandBuckets := range lshBuckets {
		for _, bucket := range bandBuckets {
			if len(bucket) < 2 {
				continue
			}
			for i := 0; i < len(bucket); i++ {
				for j := i + 1; j < len(bucket); j++ {
					idxA, idxB := bucket[i], bucket[j]
					if idxA > idxB {
						idxA, idxB = idxB, idxA
					}
					pairKey := uint64(idxA)<<32 | uint64(idxB)
					candidatePairs[pairKey] = struct{}{}
				}
			}
		}
	}

	var pairs []clonePair
	for pairKey := range candidatePairs {
		idxA := int(pairKey >> 32)
		idxB := int(pairKey & 0xFFFFFFFF)
		fragA := fragments[idxA]
		fragB := fragments[idxB]

		if fragA.file == fragB.file {
			if fragA.startLine <= fragB.endLine && fragB.startLine <= fragA.endLine {
				continue
			}
		}

		similarity := fragA.signature.JaccardSimilarity(fragB.signature)
		if similarity >= a.config.SimilarityThreshold {
			pairs = append(pairs, clonePair{
				idxA:       idxA,
				idxB:       idxB,
				similarity: similarity,
			})
		}
	}

	return pairs
}

// groupClonesLSH groups LSH-verified fragment pairs with Union-Find into
// Type-3 semantic groups.
func groupClonesLSH(fragments []codeFragment, pairs []clonePair, minGroupSize int) []Group {
	if len(pairs) == 0 {
		return nil
	}

	parent := make([]int, len(fragments))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(x, y int) {
		px, py := find(x), find(y)
		if px != py {
			parent[px] = py
		}
	}
	for _, pair := range pairs {
		union(pair.idxA, pair.idxB)
	}

	groupMap := make(map[int][]int)
	for i := range fragments {
		root := find(i)
		groupMap[root] = append(groupMap[root], i)
	}

	similarityMap := make(map[[2]int]float64)
	for _, pair := range pairs {
		key := [2]int{pair.idxA, pair.idxB}
		if pair.idxA > pair.idxB {
			key = [2]int{pair.idxB, pair.idxA}
		}
		similarityMap[key] = pair.similarity
	}

	var groups []Group
	for _, memberIndices := range groupMap {
		if len(memberIndices) < minGroupSize {
			continue
		}

		var instances []Instance
		var totalLines, totalTokens int
		var similaritySum float64
		var similarityCount int

		for _, idx := range memberIndices {
			frag := fragments[idx]
			lines := int(frag.endLine - frag.startLine + 1)
			instances = append(instances, Instance{
				File:           frag.file,
				StartLine:      frag.startLine,
				EndLine:        frag.endLine,
				Lines:          lines,
				NormalizedHash: frag.normalizedHash,
				Similarity:     1.0,
			})
			totalLines += lines
			totalTokens += len(frag.tokens)
		}

		for i := 0; i < len(memberIndices); i++ {
			for j := i + 1; j < len(memberIndices); j++ {
				key := [2]int{memberIndices[i], memberIndices[j]}
				if memberIndices[i] > memberIndices[j] {
					key = [2]int{memberIndices[j], memberIndices[i]}
				}
				if sim, ok := similarityMap[key]; ok {
					similaritySum += sim
					similarityCount++
				}
			}
		}

		avgSimilarity := 1.0
		if similarityCount > 0 {
			avgSimilarity = similaritySum / float64(similarityCount)
		}

		groups = append(groups, Group{
			Type:              Type3,
			Method:            "minhash-lsh",
			Instances:         instances,
			TotalLines:        totalLines,
			TotalTokens:       totalTokens,
			AverageSimilarity: avgSimilarity,
		})
	}

	return groups
}
