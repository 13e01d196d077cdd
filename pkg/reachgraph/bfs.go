package reachgraph

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// ErrCancelled is returned by ReachableBFS when ctx is cancelled between
// BFS levels.
var ErrCancelled = errors.New("reachgraph: analysis cancelled")

// BFSMode selects the concurrency strategy for ReachableBFS.
type BFSMode string

const (
	// BFSNone runs a single-threaded, level-synchronous BFS. No atomics.
	BFSNone BFSMode = "none"
	// BFSSafe runs the thread-parallel algorithm with a deterministic
	// result: only the final reachable set is observable.
	BFSSafe BFSMode = "safe"
	// BFSMaximum behaves like BFSSafe; it exists as a distinct mode so
	// callers can request maximum parallelism without changing semantics.
	BFSMaximum BFSMode = "maximum"
)

// direction-switch thresholds from spec: bottom-up when the frontier's
// out-degree exceeds unvisited out-degree / alpha; back to top-down once the
// frontier shrinks below nodeCount / beta.
const (
	alpha = 14
	beta  = 24
)

// ReachableBFS computes the set of node ids reachable from dg.Roots using
// direction-optimizing BFS: top-down steps expand the frontier's forward
// edges, bottom-up steps scan not-yet-visited nodes' reverse edges for any
// neighbor already in the frontier. Both visit every reachable node exactly
// once; which strategy runs at each level is a performance heuristic only,
// it does not change the result. ctx is checked at each level boundary.
func ReachableBFS(ctx context.Context, dg *DenseGraph, mode BFSMode) (*Bitmap, error) {
	visited := NewBitmap(uint32(dg.NodeCount))
	if dg.NodeCount == 0 {
		return visited, nil
	}

	frontier := make([]uint32, 0, len(dg.Roots))
	for _, r := range dg.Roots {
		if visited.TestAndSet(r) {
			frontier = append(frontier, r)
		}
	}

	workers := 1
	if mode != BFSNone {
		workers = runtime.NumCPU()
	}

	bottomUp := false
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, ErrCancelled
		}

		mf := 0
		for _, u := range frontier {
			mf += dg.OutDegree(u)
		}
		mu := unvisitedOutDegree(dg, visited)

		switch {
		case mu > 0 && mf > mu/alpha:
			bottomUp = true
		case len(frontier) < dg.NodeCount/beta:
			bottomUp = false
		}

		var next []uint32
		if bottomUp {
			next = bottomUpStep(dg, visited, newFrontierSet(frontier), workers)
		} else {
			next = topDownStep(ctx, dg, visited, frontier, workers)
		}
		frontier = next
	}

	return visited, nil
}

func unvisitedOutDegree(dg *DenseGraph, visited *Bitmap) int {
	total := 0
	for id := 0; id < dg.NodeCount; id++ {
		if !visited.Test(uint32(id)) {
			total += dg.OutDegree(uint32(id))
		}
	}
	return total
}

func newFrontierSet(frontier []uint32) map[uint32]struct{} {
	set := make(map[uint32]struct{}, len(frontier))
	for _, id := range frontier {
		set[id] = struct{}{}
	}
	return set
}

// topDownStep expands the frontier's forward edges. Work is chunked across
// goroutines; each worker accumulates into a local slice to avoid lock
// contention, merged into the shared visited bitmap (which is itself
// safe for concurrent TestAndSet) as results arrive.
func topDownStep(ctx context.Context, dg *DenseGraph, visited *Bitmap, frontier []uint32, workers int) []uint32 {
	if len(frontier) == 0 {
		return nil
	}

	chunkSize := (len(frontier) + workers - 1) / workers
	if chunkSize == 0 {
		chunkSize = len(frontier)
	}

	var nextChunks [][]uint32
	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(workers)
	for start := 0; start < len(frontier); start += chunkSize {
		end := start + chunkSize
		if end > len(frontier) {
			end = len(frontier)
		}
		chunk := frontier[start:end]
		p.Go(func() {
			var local []uint32
			for _, u := range chunk {
				for _, v := range dg.Forward(u) {
					if visited.TestAndSet(v) {
						local = append(local, v)
					}
				}
			}
			if len(local) > 0 {
				mu.Lock()
				nextChunks = append(nextChunks, local)
				mu.Unlock()
			}
		})
	}
	p.Wait()

	var next []uint32
	for _, c := range nextChunks {
		next = append(next, c...)
	}
	return next
}

// bottomUpStep scans every not-yet-visited node's reverse neighbors; a node
// joins next as soon as any reverse neighbor is in the frontier.
func bottomUpStep(dg *DenseGraph, visited *Bitmap, frontierSet map[uint32]struct{}, workers int) []uint32 {
	partitionSize := (dg.NodeCount + workers - 1) / workers
	if partitionSize == 0 {
		partitionSize = dg.NodeCount
	}

	var nextChunks [][]uint32
	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(workers)
	for start := 0; start < dg.NodeCount; start += partitionSize {
		end := start + partitionSize
		if end > dg.NodeCount {
			end = dg.NodeCount
		}
		lo, hi := start, end
		p.Go(func() {
			var local []uint32
			for id := lo; id < hi; id++ {
				v := uint32(id)
				if visited.Test(v) {
					continue
				}
				for _, u := range dg.Reverse(v) {
					if _, inFrontier := frontierSet[u]; inFrontier {
						if visited.TestAndSet(v) {
							local = append(local, v)
						}
						break
					}
				}
			}
			if len(local) > 0 {
				mu.Lock()
				nextChunks = append(nextChunks, local)
				mu.Unlock()
			}
		})
	}
	p.Wait()

	var next []uint32
	for _, c := range nextChunks {
		next = append(next, c...)
	}
	return next
}
