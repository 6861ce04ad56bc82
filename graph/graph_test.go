package graph

import (
	"testing"

	"github.com/rcowham/cvs2svn-go/model"
)

func TestTopoLinearChain(t *testing.T) {
	g := New()
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	res := Topo(g, nil)
	if res.Stalled {
		t.Fatalf("unexpected stall, cycle=%v", res.Cycle)
	}
	want := []model.ID{1, 2, 3}
	if len(res.Order) != len(want) {
		t.Fatalf("Order = %v, want %v", res.Order, want)
	}
	for i := range want {
		if res.Order[i] != want[i] {
			t.Fatalf("Order = %v, want %v", res.Order, want)
		}
	}
}

func TestTopoDetectsCycle(t *testing.T) {
	g := New()
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(3, 1)
	res := Topo(g, nil)
	if !res.Stalled {
		t.Fatalf("expected stall, got order %v", res.Order)
	}
	if len(res.Cycle) != 3 {
		t.Fatalf("Cycle = %v, want 3 nodes", res.Cycle)
	}
	seen := map[model.ID]bool{}
	for _, n := range res.Cycle {
		seen[n] = true
	}
	for _, want := range []model.ID{1, 2, 3} {
		if !seen[want] {
			t.Fatalf("Cycle %v missing node %d", res.Cycle, want)
		}
	}
}

func TestAcyclic(t *testing.T) {
	g := New()
	g.AddEdge(1, 2)
	if !Acyclic(g) {
		t.Fatal("expected acyclic")
	}
	g.AddEdge(2, 1)
	if Acyclic(g) {
		t.Fatal("expected cyclic")
	}
}

func TestRemoveEdgeBreaksCycle(t *testing.T) {
	g := New()
	g.AddEdge(1, 2)
	g.AddEdge(2, 1)
	g.RemoveEdge(2, 1)
	if !Acyclic(g) {
		t.Fatal("expected acyclic after RemoveEdge")
	}
}

func TestBestSplitPrefersMoreCycleEdgesCutFewerOthers(t *testing.T) {
	scores := map[int]SplitScore{
		1: {CutIndex: 1, CycleEdgesCut: 1, OtherEdgesCut: 0},
		2: {CutIndex: 2, CycleEdgesCut: 2, OtherEdgesCut: 2}, // net score 0, below entry 1's
		3: {CutIndex: 3, CycleEdgesCut: 3, OtherEdgesCut: 0}, // best net score
	}
	best, ok := BestSplit(4, func(i int) SplitScore { return scores[i] })
	if !ok {
		t.Fatal("expected a split")
	}
	if best.CutIndex != 3 {
		t.Fatalf("CutIndex = %d, want 3", best.CutIndex)
	}
}

func TestBestSplitTieBreaksToEarliestIndex(t *testing.T) {
	scores := map[int]SplitScore{
		1: {CutIndex: 1, CycleEdgesCut: 2, OtherEdgesCut: 0},
		2: {CutIndex: 2, CycleEdgesCut: 2, OtherEdgesCut: 0},
	}
	best, ok := BestSplit(3, func(i int) SplitScore { return scores[i] })
	if !ok {
		t.Fatal("expected a split")
	}
	if best.CutIndex != 1 {
		t.Fatalf("CutIndex = %d, want 1 (earliest tie)", best.CutIndex)
	}
}

func TestBestSplitTooSmall(t *testing.T) {
	if _, ok := BestSplit(1, func(i int) SplitScore { return SplitScore{} }); ok {
		t.Fatal("expected no split possible for n<2")
	}
}
