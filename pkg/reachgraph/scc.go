package reachgraph

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// selfReferencedSets returns, for every unreachable node that sits in a
// strongly-connected component of size > 1 (a cycle of mutually-calling
// dead declarations), the set of node ids sharing that component. A node
// with no incoming edges at all, or whose only callers live outside any
// cycle back to it, is left out: those are reported as neverReferenced
// instead (see classifyDeadCode in reachgraph.go).
//
// onlySelfReferenced is reported when all reverse edges to a node originate
// from nodes reachable only from that same node -- i.e. the node and its
// self-referencers form a disconnected island with respect to the roots.
// Any node unreachable from the BFS roots already has this property for its
// direct callers (a root-reachable caller would have made it reachable too),
// so a mutual-call cycle detected by Tarjan's algorithm is the sharpest
// signal available for "disconnected island" rather than "no caller at all".
func selfReferencedSets(dg *DenseGraph, unreachable *Bitmap) map[uint32]bool {
	g := simple.NewDirectedGraph()
	for id := 0; id < dg.NodeCount; id++ {
		if unreachable.Test(uint32(id)) {
			g.AddNode(simple.Node(int64(id)))
		}
	}
	for id := 0; id < dg.NodeCount; id++ {
		if !unreachable.Test(uint32(id)) {
			continue
		}
		for _, v := range dg.Forward(uint32(id)) {
			if unreachable.Test(v) {
				g.SetEdge(simple.Edge{F: simple.Node(int64(id)), T: simple.Node(int64(v))})
			}
		}
	}

	result := make(map[uint32]bool)
	for _, component := range stronglyConnectedComponents(g) {
		if len(component) < 2 {
			continue
		}
		for _, n := range component {
			result[uint32(n.ID())] = true
		}
	}
	return result
}

func stronglyConnectedComponents(g graph.Directed) [][]graph.Node {
	return topo.TarjanSCC(g)
}
