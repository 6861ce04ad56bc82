// Package graph implements the small in-memory dependency-graph
// machinery shared by the cycle-breaking and topological-sort passes
// (§4.7-§4.11, §9 design note "Cyclic graphs"). Graphs here are
// represented as {node -> set of successors} plus {node -> in-degree},
// per the design note, and are rebuilt fresh by whichever pass needs
// them rather than held across passes.
package graph

import "github.com/rcowham/cvs2svn-go/model"

// Graph is a directed graph over model.ID nodes.
type Graph struct {
	nodes   map[model.ID]bool
	succ    map[model.ID]map[model.ID]bool
	inDeg   map[model.ID]int
	present int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[model.ID]bool),
		succ:  make(map[model.ID]map[model.ID]bool),
		inDeg: make(map[model.ID]int),
	}
}

// AddNode ensures a node is present even if it has no edges yet.
func (g *Graph) AddNode(n model.ID) {
	if !g.nodes[n] {
		g.nodes[n] = true
		g.present++
		if g.succ[n] == nil {
			g.succ[n] = make(map[model.ID]bool)
		}
		if _, ok := g.inDeg[n]; !ok {
			g.inDeg[n] = 0
		}
	}
}

// AddEdge records that `to` depends on `from` (from must commit before to).
// Self-edges are ignored: they cannot be satisfied and §3 guarantees no
// item depends on itself.
func (g *Graph) AddEdge(from, to model.ID) {
	if from == to {
		return
	}
	g.AddNode(from)
	g.AddNode(to)
	if !g.succ[from][to] {
		g.succ[from][to] = true
		g.inDeg[to]++
	}
}

// RemoveEdge deletes the from->to edge, if present.
func (g *Graph) RemoveEdge(from, to model.ID) {
	if g.succ[from] != nil && g.succ[from][to] {
		delete(g.succ[from], to)
		g.inDeg[to]--
	}
}

// Successors returns the nodes that depend on n.
func (g *Graph) Successors(n model.ID) []model.ID {
	out := make([]model.ID, 0, len(g.succ[n]))
	for s := range g.succ[n] {
		out = append(out, s)
	}
	return out
}

// Nodes returns every node currently in the graph.
func (g *Graph) Nodes() []model.ID {
	out := make([]model.ID, 0, g.present)
	for n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// InDegree returns n's current in-degree.
func (g *Graph) InDegree(n model.ID) int {
	return g.inDeg[n]
}

// TopoResult is the outcome of attempting a topological traversal: either
// a complete Order, or a Stalled cycle when the ready set emptied with
// nodes remaining (§9: "the dual of Kahn's algorithm").
type TopoResult struct {
	Order   []model.ID // valid only when Cycle is nil
	Cycle   []model.ID // one induced cycle, in edge order, when stalled
	Stalled bool
}

// Topo attempts a Kahn's-algorithm topological sort. less, if non-nil, is
// used to break ties among simultaneously-ready nodes (e.g. timestamp
// order, §4.8). When the ready set is exhausted before every node has
// been emitted, Topo extracts one induced cycle via DFS from an
// unvisited remaining node and returns it instead of an order.
func Topo(g *Graph, less func(a, b model.ID) bool) TopoResult {
	inDeg := make(map[model.ID]int, len(g.inDeg))
	for n, d := range g.inDeg {
		inDeg[n] = d
	}
	var ready []model.ID
	for n := range g.nodes {
		if inDeg[n] == 0 {
			ready = append(ready, n)
		}
	}
	sortReady(ready, less)

	order := make([]model.ID, 0, g.present)
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		var justReady []model.ID
		for s := range g.succ[n] {
			inDeg[s]--
			if inDeg[s] == 0 {
				justReady = append(justReady, s)
			}
		}
		sortReady(justReady, less)
		ready = mergeReady(ready, justReady, less)
	}

	if len(order) == g.present {
		return TopoResult{Order: order}
	}

	// Stalled: some node never reached in-degree 0. Find a cycle among the
	// remaining nodes via DFS with a 3-color stack marker, same idea as
	// the cycle-detection walk used for import graphs (see
	// other_examples' gopls metadata graph `cyclic` helper) but extracting
	// the actual cycle path rather than just reporting one exists.
	remaining := make(map[model.ID]bool)
	for n := range g.nodes {
		if inDeg[n] != 0 {
			remaining[n] = true
		}
	}
	return TopoResult{Stalled: true, Cycle: extractCycle(g, remaining)}
}

const (
	colorWhite = iota
	colorGray
	colorBlack
)

func extractCycle(g *Graph, remaining map[model.ID]bool) []model.ID {
	color := make(map[model.ID]int)
	var stack []model.ID
	var cycle []model.ID

	var visit func(n model.ID) bool
	visit = func(n model.ID) bool {
		color[n] = colorGray
		stack = append(stack, n)
		succs := make([]model.ID, 0, len(g.succ[n]))
		for s := range g.succ[n] {
			if remaining[s] {
				succs = append(succs, s)
			}
		}
		sortReady(succs, nil)
		for _, s := range succs {
			switch color[s] {
			case colorWhite:
				if visit(s) {
					return true
				}
			case colorGray:
				// Found the back edge; unwind the stack to build the cycle.
				for i := len(stack) - 1; i >= 0; i-- {
					cycle = append(cycle, stack[i])
					if stack[i] == s {
						break
					}
				}
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = colorBlack
		return false
	}

	var start []model.ID
	for n := range remaining {
		start = append(start, n)
	}
	sortReady(start, nil)
	for _, n := range start {
		if color[n] == colorWhite {
			if visit(n) {
				reverseIDs(cycle)
				return cycle
			}
		}
	}
	return nil
}

func reverseIDs(s []model.ID) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func sortReady(s []model.ID, less func(a, b model.ID) bool) {
	if len(s) < 2 {
		return
	}
	cmp := less
	if cmp == nil {
		cmp = func(a, b model.ID) bool { return a < b }
	}
	// insertion sort: these slices are tiny (per-node successor counts in
	// a CVS changeset graph are small) so O(n^2) is the simplest correct
	// choice and keeps tie-break order stable.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && cmp(s[j], s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func mergeReady(a, b []model.ID, less func(x, y model.ID) bool) []model.ID {
	out := append(a, b...)
	sortReady(out, less)
	return out
}

// Acyclic reports whether the graph has no cycles, without extracting one.
func Acyclic(g *Graph) bool {
	return !Topo(g, nil).Stalled
}
