package passes

import (
	"path/filepath"
	"sort"

	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/store"
)

// BreakRevisionCyclesOptions configures the BreakRevisionChangesetCycles pass.
type BreakRevisionCyclesOptions struct {
	WorkDir string
}

// BreakRevisionCyclesPass makes the revision-changeset subgraph acyclic
// (§4.7, §8 property 2) by repeatedly splitting the largest cyclic
// revision changeset with graph.BestSplit. Symbol changesets are carried
// through untouched; the dependency edges they introduce are reconsidered
// starting at BreakSymbolChangesetCycles (§4.9).
func BreakRevisionCyclesPass(opts BreakRevisionCyclesOptions) error {
	prev := filepath.Join(opts.WorkDir, InitializeChangesets)

	changesets, err := loadChangesets(filepath.Join(prev, "changesets"))
	if err != nil {
		return err
	}
	itemByID, items, err := loadItems(filepath.Join(prev, "items"))
	if err != nil {
		return err
	}
	itemToChangeset := buildItemToChangeset(changesets)

	gen, err := store.LoadIDGen(opts.WorkDir)
	if err != nil {
		return err
	}

	onlyRevision := func(cs *model.Changeset) bool { return cs.Kind == model.ChangesetRevision }
	if err := breakCycles(changesets, itemByID, itemToChangeset, gen, onlyRevision, onlyRevision); err != nil {
		return err
	}

	dir, err := store.PassDir(opts.WorkDir, BreakRevisionCycles)
	if err != nil {
		return err
	}
	if err := writeChangesets(filepath.Join(dir, "changesets"), BreakRevisionCycles, changesets); err != nil {
		return err
	}
	if err := writeItems(filepath.Join(dir, "items"), BreakRevisionCycles, items); err != nil {
		return err
	}
	if err := passThroughChangesetStores(prev, dir, BreakRevisionCycles); err != nil {
		return err
	}
	if err := store.SaveIDGen(opts.WorkDir, gen); err != nil {
		return err
	}
	return store.Commit(opts.WorkDir, BreakRevisionCycles)
}

// loadChangesets reads every Changeset from path, keyed by id.
func loadChangesets(path string) (map[model.ID]*model.Changeset, error) {
	r, err := store.OpenKeyedStore[*model.Changeset](path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	all, err := r.All()
	if err != nil {
		return nil, err
	}
	out := make(map[model.ID]*model.Changeset, len(all))
	for _, cs := range all {
		out[cs.ID] = cs
	}
	return out, nil
}

// loadItems reads every Item from path, both as a slice (for re-emitting)
// and keyed by id (for graph construction).
func loadItems(path string) (map[model.ID]*model.Item, []*model.Item, error) {
	r, err := store.OpenKeyedStore[*model.Item](path)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()
	all, err := r.All()
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[model.ID]*model.Item, len(all))
	for _, it := range all {
		byID[it.ID] = it
	}
	return byID, all, nil
}

func writeChangesets(path, pass string, changesets map[model.ID]*model.Changeset) error {
	ordered := make([]*model.Changeset, 0, len(changesets))
	for _, cs := range changesets {
		ordered = append(ordered, cs)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	w, err := store.CreateKeyedStore[*model.Changeset](path, pass)
	if err != nil {
		return err
	}
	for _, cs := range ordered {
		if err := w.Write(cs); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func writeItems(path, pass string, items []*model.Item) error {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	w, err := store.CreateKeyedStore[*model.Item](path, pass)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := w.Write(it); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// passThroughChangesetStores copies the four keyed stores none of the
// changeset-graph passes (§4.7-§4.11) touch.
func passThroughChangesetStores(prev, dir, pass string) error {
	if err := copyKeyedStore[*model.Project](filepath.Join(prev, "projects"), filepath.Join(dir, "projects"), pass); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.CVSPath](filepath.Join(prev, "paths"), filepath.Join(dir, "paths"), pass); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.Metadata](filepath.Join(prev, "metadata"), filepath.Join(dir, "metadata"), pass); err != nil {
		return err
	}
	return copyKeyedStore[*model.Symbol](filepath.Join(prev, "symbols"), filepath.Join(dir, "symbols"), pass)
}
