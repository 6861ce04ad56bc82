package passes

import (
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rcowham/cvs2svn-go/config"
	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/store"
)

// FilterSymbolsOptions configures the FilterSymbols pass.
type FilterSymbolsOptions struct {
	Cfg     *config.Config
	WorkDir string
}

// FilterSymbols drops every item belonging to an Excluded symbol, repairs
// the predecessor references that dropping leaves dangling, reinterprets
// any item whose Kind disagrees with its symbol's final classification
// (a forced_tags rule can turn what Collect saw as a branch revision
// number into a tag, and vice versa), computes each revision's Opens/Closes
// symbol bookkeeping (§4.4 step 4), and emits the two line-oriented streams
// (by metadata+time, by symbol) the Sort passes consume (§4.5).
func FilterSymbolsPass(opts FilterSymbolsOptions) error {
	prev := filepath.Join(opts.WorkDir, CollateSymbols)

	symR, err := store.OpenKeyedStore[*model.Symbol](filepath.Join(prev, "symbols"))
	if err != nil {
		return err
	}
	symbols, err := symR.All()
	symR.Close()
	if err != nil {
		return err
	}
	classOf := make(map[model.ID]model.SymbolClassification, len(symbols))
	for _, s := range symbols {
		classOf[s.ID] = s.Classification
	}
	excluded := make(map[model.ID]bool)
	for id, c := range classOf {
		if c == model.SymbolExcluded {
			excluded[id] = true
		}
	}

	itemR, err := store.OpenKeyedStore[*model.Item](filepath.Join(prev, "items"))
	if err != nil {
		return err
	}
	allItems, err := itemR.All()
	itemR.Close()
	if err != nil {
		return err
	}

	oldByID := make(map[model.ID]*model.Item, len(allItems))
	for _, it := range allItems {
		oldByID[it.ID] = it
	}

	// isExcludedItem cascades symbol exclusion onto every item that lives
	// on the excluded LOD: the branch/tag creation itself, and every
	// revision committed directly on it (an orphaned revision with no
	// branch to carry it makes no sense to keep).
	isExcludedItem := func(it *model.Item) bool {
		if it.Kind != model.ItemRevision {
			return excluded[it.SymbolID]
		}
		return it.LineOfDevelopment != model.NoID && excluded[it.LineOfDevelopment]
	}

	dropped := make(map[model.ID]bool)
	for _, it := range allItems {
		if isExcludedItem(it) {
			dropped[it.ID] = true
		}
	}

	// resolvePredecessor walks past any dropped item to the nearest kept
	// (or absent) ancestor, so excluding a symbol never leaves a surviving
	// item pointing at a reference that no longer exists.
	var resolvePredecessor func(id model.ID) model.ID
	resolvePredecessor = func(id model.ID) model.ID {
		if id == model.NoID {
			return model.NoID
		}
		if !dropped[id] {
			return id
		}
		anc, ok := oldByID[id]
		if !ok {
			return model.NoID
		}
		return resolvePredecessor(anc.Predecessor)
	}

	kept := make([]*model.Item, 0, len(allItems))
	keptSet := make(map[model.ID]bool)
	for _, it := range allItems {
		if dropped[it.ID] {
			continue
		}
		kept = append(kept, it)
		keptSet[it.ID] = true
	}
	for _, it := range kept {
		it.Predecessor = resolvePredecessor(it.Predecessor)
		if it.Kind == model.ItemBranch {
			filtered := it.DependentBranchCommits[:0:0]
			for _, dep := range it.DependentBranchCommits {
				if keptSet[dep] {
					filtered = append(filtered, dep)
				}
			}
			it.DependentBranchCommits = filtered
		}
		// A forced_tags/forced_branches rule can override what Collect's
		// purely syntactic RCS-number classification decided; the symbol's
		// final Classification from CollateSymbols is authoritative.
		if it.Kind == model.ItemBranch && classOf[it.SymbolID] == model.SymbolTag {
			it.Kind = model.ItemTag
		} else if it.Kind == model.ItemTag && classOf[it.SymbolID] == model.SymbolBranch {
			it.Kind = model.ItemBranch
		}
	}

	// PreferredParent (computed from SymbolStats, carried through
	// CollateSymbols) resolves which line-of-development a symbol is
	// considered to sprout from project-wide, for the sink's copy-source
	// selection. It does not change any item's own (file-true) Predecessor
	// edge, so no further mutation is needed here; recording it is the
	// sink's concern once that layer consumes FilterSymbols' output,
	// which is out of this pass's scope.

	itemByID := make(map[model.ID]*model.Item, len(kept))
	for _, it := range kept {
		itemByID[it.ID] = it
	}
	byFile := make(map[model.ID][]*model.Item)
	for _, it := range kept {
		byFile[it.FileID] = append(byFile[it.FileID], it)
	}
	for _, it := range kept {
		if it.Kind == model.ItemRevision {
			continue
		}
		base := itemByID[it.Predecessor]
		if base == nil {
			continue
		}
		base.Opens = append(base.Opens, model.SymbolUse{SymbolID: it.SymbolID, Opens: true})
		if it.Kind != model.ItemBranch {
			continue
		}
		if len(it.DependentBranchCommits) == 0 {
			base.Closes = append(base.Closes, model.SymbolUse{SymbolID: it.SymbolID})
			continue
		}
		var last *model.Item
		for _, depID := range it.DependentBranchCommits {
			dep := itemByID[depID]
			if dep == nil {
				continue
			}
			if last == nil || lessRevision(last.RevisionNumber, dep.RevisionNumber) {
				last = dep
			}
		}
		if last != nil {
			last.Closes = append(last.Closes, model.SymbolUse{SymbolID: it.SymbolID})
		}
	}

	dir, err := store.PassDir(opts.WorkDir, FilterSymbols)
	if err != nil {
		return err
	}

	itemW, err := store.CreateKeyedStore[*model.Item](filepath.Join(dir, "items"), FilterSymbols)
	if err != nil {
		return err
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].ID < kept[j].ID })
	for _, it := range kept {
		if err := itemW.Write(it); err != nil {
			itemW.Close()
			return err
		}
	}
	if err := itemW.Close(); err != nil {
		return err
	}

	if err := copyKeyedStore[*model.Project](filepath.Join(prev, "projects"), filepath.Join(dir, "projects"), FilterSymbols); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.CVSPath](filepath.Join(prev, "paths"), filepath.Join(dir, "paths"), FilterSymbols); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.Metadata](filepath.Join(prev, "metadata"), filepath.Join(dir, "metadata"), FilterSymbols); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.Symbol](filepath.Join(prev, "symbols"), filepath.Join(dir, "symbols"), FilterSymbols); err != nil {
		return err
	}

	revW, err := store.CreateLineStream(filepath.Join(dir, "revisions.stream"), FilterSymbols)
	if err != nil {
		return err
	}
	symW, err := store.CreateLineStream(filepath.Join(dir, "symbols.stream"), FilterSymbols)
	if err != nil {
		revW.Close()
		return err
	}
	for _, it := range kept {
		if it.Kind == model.ItemRevision {
			if err := revW.WriteFields(
				strconv.FormatInt(int64(it.ID), 10),
				strconv.FormatInt(int64(it.MetadataID), 10),
				strconv.FormatInt(it.Timestamp.Unix(), 10),
			); err != nil {
				revW.Close()
				symW.Close()
				return err
			}
			continue
		}
		if err := symW.WriteFields(
			strconv.FormatInt(int64(it.ID), 10),
			strconv.FormatInt(int64(it.SymbolID), 10),
		); err != nil {
			revW.Close()
			symW.Close()
			return err
		}
	}
	if err := revW.Close(); err != nil {
		symW.Close()
		return err
	}
	if err := symW.Close(); err != nil {
		return err
	}

	return store.Commit(opts.WorkDir, FilterSymbols)
}
