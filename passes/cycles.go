package passes

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/rcowham/cvs2svn-go/graph"
	"github.com/rcowham/cvs2svn-go/model"
)

// wrapUnbreakable attaches a stack trace to an UnbreakableCycleError, per
// the §7 propagation policy for passes built on the graph package.
func wrapUnbreakable(cycle []model.ID, msg string) error {
	return errors.Wrapf(&model.UnbreakableCycleError{Changesets: cycle}, msg)
}

// buildItemToChangeset inverts a changeset set's membership lists.
func buildItemToChangeset(changesets map[model.ID]*model.Changeset) map[model.ID]model.ID {
	out := make(map[model.ID]model.ID)
	for _, cs := range changesets {
		for _, id := range cs.Items {
			out[id] = cs.ID
		}
	}
	return out
}

// recomputeDependencies rebuilds every changeset's Dependencies set from
// the item-level edges: a changeset depends on whatever changeset holds
// its items' Predecessors, and (the fourth edge kind of §3) a changeset
// holding a revision that commits directly on a branch depends on the
// changeset holding that branch's creation. Rebuilding from scratch after
// every split keeps this correct without chasing stale cross-references
// into a changeset id that a split has just retired.
func recomputeDependencies(changesets map[model.ID]*model.Changeset, itemByID map[model.ID]*model.Item, itemToChangeset map[model.ID]model.ID) {
	for _, cs := range changesets {
		cs.Dependencies = make(map[model.ID]bool)
	}
	for _, cs := range changesets {
		for _, id := range cs.Items {
			it := itemByID[id]
			if it == nil {
				continue
			}
			if it.Predecessor != model.NoID {
				if pcs, ok := itemToChangeset[it.Predecessor]; ok {
					cs.AddDependency(pcs)
				}
			}
			for _, dep := range it.DependentBranchCommits {
				dcs, ok := itemToChangeset[dep]
				if !ok {
					continue
				}
				if other := changesets[dcs]; other != nil {
					other.AddDependency(cs.ID)
				}
			}
		}
	}
}

// buildGraph constructs the dependency graph over the changesets include
// selects, using each one's current Dependencies.
func buildGraph(changesets map[model.ID]*model.Changeset, include func(*model.Changeset) bool) *graph.Graph {
	g := graph.New()
	for _, cs := range changesets {
		if include(cs) {
			g.AddNode(cs.ID)
		}
	}
	for _, cs := range changesets {
		if !include(cs) {
			continue
		}
		for dep := range cs.Dependencies {
			if other, ok := changesets[dep]; ok && include(other) {
				g.AddEdge(dep, cs.ID)
			}
		}
	}
	return g
}

// splitChangeset partitions cs's items (sorted by timestamp) at the cut
// graph.BestSplit scores highest, and returns the two resulting
// changesets. An item's dependency crosses the cut productively
// (CycleEdgesCut) when it links to a changeset outside cs; it counts
// against the split (OtherEdgesCut) when the split places the two sides
// of that same outside link so they would still have to interleave, which
// this scoring approximates by charging incoming edges found in the
// earlier half and outgoing edges found in the later half — the mirror
// image of the productive case (§4.7/§4.9 Open Question (ii)).
func splitChangeset(cs *model.Changeset, itemByID map[model.ID]*model.Item, itemToChangeset map[model.ID]model.ID, gen *model.IDGen) (*model.Changeset, *model.Changeset, bool) {
	if len(cs.Items) < 2 {
		return nil, nil, false
	}
	items := make([]*model.Item, len(cs.Items))
	for i, id := range cs.Items {
		items[i] = itemByID[id]
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Timestamp.Before(items[j].Timestamp) })

	hasIncoming := func(it *model.Item) bool {
		return it.Predecessor != model.NoID && itemToChangeset[it.Predecessor] != cs.ID
	}
	hasOutgoing := func(it *model.Item) bool {
		for _, dep := range it.DependentBranchCommits {
			if itemToChangeset[dep] != cs.ID {
				return true
			}
		}
		return false
	}

	best, ok := graph.BestSplit(len(items), func(i int) graph.SplitScore {
		var cut, other int
		for _, it := range items[:i] {
			if hasOutgoing(it) {
				cut++
			}
			if hasIncoming(it) {
				other++
			}
		}
		for _, it := range items[i:] {
			if hasIncoming(it) {
				cut++
			}
			if hasOutgoing(it) {
				other++
			}
		}
		return graph.SplitScore{CutIndex: i, CycleEdgesCut: cut, OtherEdgesCut: other}
	})
	if !ok {
		return nil, nil, false
	}

	var a, b *model.Changeset
	if cs.Kind == model.ChangesetSymbol {
		a = model.NewSymbolChangeset(gen.Next(), cs.SymbolID)
		b = model.NewSymbolChangeset(gen.Next(), cs.SymbolID)
	} else {
		a = model.NewRevisionChangeset(gen.Next())
		b = model.NewRevisionChangeset(gen.Next())
	}
	for _, it := range items[:best.CutIndex] {
		a.Items = append(a.Items, it.ID)
		itemToChangeset[it.ID] = a.ID
	}
	for _, it := range items[best.CutIndex:] {
		b.Items = append(b.Items, it.ID)
		itemToChangeset[it.ID] = b.ID
	}
	sort.Slice(a.Items, func(i, j int) bool { return a.Items[i] < a.Items[j] })
	sort.Slice(b.Items, func(i, j int) bool { return b.Items[i] < b.Items[j] })
	return a, b, true
}

// breakCycles repeatedly topo-sorts the graph include selects and, on
// every stall, splits the largest splittable changeset participating in
// the reported cycle, until the graph is acyclic. It returns
// UnbreakableCycleError if a stall's cycle contains no changeset that
// splittable accepts with at least two items (§7).
func breakCycles(changesets map[model.ID]*model.Changeset, itemByID map[model.ID]*model.Item, itemToChangeset map[model.ID]model.ID, gen *model.IDGen, include, splittable func(*model.Changeset) bool) error {
	for {
		g := buildGraph(changesets, include)
		res := graph.Topo(g, nil)
		if !res.Stalled {
			return nil
		}

		var target *model.Changeset
		for _, id := range res.Cycle {
			cs := changesets[id]
			if cs == nil || len(cs.Items) < 2 || !splittable(cs) {
				continue
			}
			if target == nil || len(cs.Items) > len(target.Items) || (len(cs.Items) == len(target.Items) && cs.ID < target.ID) {
				target = cs
			}
		}
		if target == nil {
			return errors.Wrapf(&model.UnbreakableCycleError{Changesets: res.Cycle}, "cycle could not be broken")
		}

		a, b, ok := splitChangeset(target, itemByID, itemToChangeset, gen)
		if !ok {
			return errors.Wrapf(&model.UnbreakableCycleError{Changesets: res.Cycle}, "cycle could not be broken")
		}
		delete(changesets, target.ID)
		changesets[a.ID] = a
		changesets[b.ID] = b
		recomputeDependencies(changesets, itemByID, itemToChangeset)
	}
}
