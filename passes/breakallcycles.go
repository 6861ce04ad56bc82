package passes

import (
	"path/filepath"

	"github.com/rcowham/cvs2svn-go/graph"
	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/store"
)

// BreakAllCyclesOptions configures the BreakAllChangesetCycles pass.
type BreakAllCyclesOptions struct {
	WorkDir string
}

// BreakAllCyclesPass is the final, full-graph acyclicity check (§4.10):
// it rebuilds the graph from both the frozen revision spine's
// Predecessor/Successor chain (in case BreakSymbolChangesetCycles'
// splits introduced a dependency that Dependencies alone wouldn't catch)
// and every changeset's current Dependencies, and, like
// BreakSymbolChangesetCycles, may split only Branch-classified symbol
// changesets to resolve whatever remains.
func BreakAllCyclesPass(opts BreakAllCyclesOptions) error {
	prev := filepath.Join(opts.WorkDir, BreakSymbolCycles)

	changesets, err := loadChangesets(filepath.Join(prev, "changesets"))
	if err != nil {
		return err
	}
	itemByID, items, err := loadItems(filepath.Join(prev, "items"))
	if err != nil {
		return err
	}
	symClass, err := loadSymbolClassifications(filepath.Join(prev, "symbols"))
	if err != nil {
		return err
	}
	itemToChangeset := buildItemToChangeset(changesets)

	gen, err := store.LoadIDGen(opts.WorkDir)
	if err != nil {
		return err
	}

	includeAll := func(*model.Changeset) bool { return true }
	splittable := func(cs *model.Changeset) bool {
		return cs.Kind == model.ChangesetSymbol && symClass[cs.SymbolID] == model.SymbolBranch
	}

	for {
		g := buildFullGraph(changesets, includeAll)
		res := graph.Topo(g, nil)
		if !res.Stalled {
			break
		}
		if err := breakOneStall(changesets, itemByID, itemToChangeset, gen, res.Cycle, splittable); err != nil {
			return err
		}
	}

	dir, err := store.PassDir(opts.WorkDir, BreakAllCycles)
	if err != nil {
		return err
	}
	if err := writeChangesets(filepath.Join(dir, "changesets"), BreakAllCycles, changesets); err != nil {
		return err
	}
	if err := writeItems(filepath.Join(dir, "items"), BreakAllCycles, items); err != nil {
		return err
	}
	if err := passThroughChangesetStores(prev, dir, BreakAllCycles); err != nil {
		return err
	}
	if err := store.SaveIDGen(opts.WorkDir, gen); err != nil {
		return err
	}
	return store.Commit(opts.WorkDir, BreakAllCycles)
}

// buildFullGraph layers the revision spine's frozen Predecessor edge on
// top of buildGraph's Dependencies-derived edges, so a split elsewhere
// that forgot to preserve the established revision order is still caught.
func buildFullGraph(changesets map[model.ID]*model.Changeset, include func(*model.Changeset) bool) *graph.Graph {
	g := buildGraph(changesets, include)
	for _, cs := range changesets {
		if cs.Kind == model.ChangesetRevision && cs.Ordered && cs.Predecessor != model.NoID {
			if other, ok := changesets[cs.Predecessor]; ok && include(other) && include(cs) {
				g.AddEdge(other.ID, cs.ID)
			}
		}
	}
	return g
}

// breakOneStall splits the largest splittable changeset in cycle, a
// single step of the same loop breakCycles runs, exposed separately here
// because this pass's graph also needs the spine edges re-added after
// every split.
func breakOneStall(changesets map[model.ID]*model.Changeset, itemByID map[model.ID]*model.Item, itemToChangeset map[model.ID]model.ID, gen *model.IDGen, cycle []model.ID, splittable func(*model.Changeset) bool) error {
	var target *model.Changeset
	for _, id := range cycle {
		cs := changesets[id]
		if cs == nil || len(cs.Items) < 2 || !splittable(cs) {
			continue
		}
		if target == nil || len(cs.Items) > len(target.Items) || (len(cs.Items) == len(target.Items) && cs.ID < target.ID) {
			target = cs
		}
	}
	if target == nil {
		return wrapUnbreakable(cycle, "cycle could not be broken")
	}
	a, b, ok := splitChangeset(target, itemByID, itemToChangeset, gen)
	if !ok {
		return wrapUnbreakable(cycle, "cycle could not be broken")
	}
	delete(changesets, target.ID)
	changesets[a.ID] = a
	changesets[b.ID] = b
	recomputeDependencies(changesets, itemByID, itemToChangeset)
	return nil
}
