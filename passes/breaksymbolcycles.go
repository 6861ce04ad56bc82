package passes

import (
	"path/filepath"

	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/store"
)

// BreakSymbolCyclesOptions configures the BreakSymbolChangesetCycles pass.
type BreakSymbolCyclesOptions struct {
	WorkDir string
}

// BreakSymbolCyclesPass makes the combined graph of symbol changesets and
// the now-ordered revision spine acyclic (§4.9). Only Branch-classified
// symbol changesets may be split: a branch changeset can always be cut by
// file (its items are independent per-file creations), but a Tag
// changeset names a single immutable snapshot and a revision changeset's
// position in the spine is already fixed by RevisionTopologicalSort
// (§4.8), so neither may be touched here.
func BreakSymbolCyclesPass(opts BreakSymbolCyclesOptions) error {
	prev := filepath.Join(opts.WorkDir, RevisionTopologicalSort)

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
	if err := breakCycles(changesets, itemByID, itemToChangeset, gen, includeAll, splittable); err != nil {
		return err
	}

	dir, err := store.PassDir(opts.WorkDir, BreakSymbolCycles)
	if err != nil {
		return err
	}
	if err := writeChangesets(filepath.Join(dir, "changesets"), BreakSymbolCycles, changesets); err != nil {
		return err
	}
	if err := writeItems(filepath.Join(dir, "items"), BreakSymbolCycles, items); err != nil {
		return err
	}
	if err := passThroughChangesetStores(prev, dir, BreakSymbolCycles); err != nil {
		return err
	}
	if err := store.SaveIDGen(opts.WorkDir, gen); err != nil {
		return err
	}
	return store.Commit(opts.WorkDir, BreakSymbolCycles)
}

// loadSymbolClassifications reads the Symbol store's Classification field,
// keyed by symbol id, for passes that need to tell a branch changeset from
// a tag changeset.
func loadSymbolClassifications(path string) (map[model.ID]model.SymbolClassification, error) {
	r, err := store.OpenKeyedStore[*model.Symbol](path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	all, err := r.All()
	if err != nil {
		return nil, err
	}
	out := make(map[model.ID]model.SymbolClassification, len(all))
	for _, s := range all {
		out[s.ID] = s.Classification
	}
	return out, nil
}
