package reachgraph

// DenseGraph is an immutable CSR (compressed sparse row) snapshot of a
// CallGraph, used by the direction-optimizing BFS in bfs.go. Building it is
// the only place dense integer ids matter: every other stage works with the
// map-based CallGraph, then BuildDenseGraph produces this snapshot once reachability
// analysis is ready to run.
type DenseGraph struct {
	NodeCount int
	Roots     []uint32

	// Forward adjacency: offsets[i]..offsets[i+1] indexes into targets for
	// node i's outgoing neighbors. offsets has NodeCount+1 entries.
	Offsets []int32
	Targets []uint32

	// Reverse adjacency, same layout, for the bottom-up BFS step.
	ROffsets []int32
	RTargets []uint32

	// IDOf maps an original CallGraph node id to its dense index.
	// OriginalID is the inverse: dense index -> original node id.
	IDOf       map[uint32]uint32
	OriginalID []uint32
}

// BuildDenseGraph snapshots a CallGraph into CSR form. Node ids in the
// CallGraph need not be contiguous from 0; BuildDenseGraph compacts them to
// a dense [0, NodeCount) range and returns the mapping applied to Roots.
func BuildDenseGraph(g *CallGraph) *DenseGraph {
	ids := make([]uint32, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	// Dense remap: original id -> compact index.
	remap := make(map[uint32]uint32, len(ids))
	for i, id := range ids {
		remap[id] = uint32(i)
	}
	n := len(ids)

	outDeg := make([]int32, n+1)
	inDeg := make([]int32, n+1)
	for _, e := range g.Edges {
		from, fromOK := remap[e.From]
		to, toOK := remap[e.To]
		if !fromOK || !toOK {
			continue
		}
		outDeg[from]++
		inDeg[to]++
	}

	offsets := make([]int32, n+1)
	roffsets := make([]int32, n+1)
	for i := 0; i < n; i++ {
		offsets[i+1] = offsets[i] + outDeg[i]
		roffsets[i+1] = roffsets[i] + inDeg[i]
	}

	targets := make([]uint32, offsets[n])
	rtargets := make([]uint32, roffsets[n])
	cursor := make([]int32, n)
	rcursor := make([]int32, n)
	copy(cursor, offsets[:n])
	copy(rcursor, roffsets[:n])

	for _, e := range g.Edges {
		from, fromOK := remap[e.From]
		to, toOK := remap[e.To]
		if !fromOK || !toOK {
			continue
		}
		targets[cursor[from]] = to
		cursor[from]++
		rtargets[rcursor[to]] = from
		rcursor[to]++
	}

	roots := make([]uint32, 0, len(g.Roots))
	for _, r := range g.Roots {
		if id, ok := remap[r]; ok {
			roots = append(roots, id)
		}
	}

	originalID := make([]uint32, n)
	for id, dense := range remap {
		originalID[dense] = id
	}

	return &DenseGraph{
		NodeCount:  n,
		Roots:      roots,
		Offsets:    offsets,
		Targets:    targets,
		ROffsets:   roffsets,
		RTargets:   rtargets,
		IDOf:       remap,
		OriginalID: originalID,
	}
}

// Forward returns the outgoing neighbors of node id.
func (dg *DenseGraph) Forward(id uint32) []uint32 {
	return dg.Targets[dg.Offsets[id]:dg.Offsets[id+1]]
}

// Reverse returns the incoming neighbors of node id.
func (dg *DenseGraph) Reverse(id uint32) []uint32 {
	return dg.RTargets[dg.ROffsets[id]:dg.ROffsets[id+1]]
}

// OutDegree returns the number of outgoing edges from node id.
func (dg *DenseGraph) OutDegree(id uint32) int {
	return int(dg.Offsets[id+1] - dg.Offsets[id])
}
