package passes

import (
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/rcowham/cvs2svn-go/config"
	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/store"
)

// CollateSymbolsOptions configures the CollateSymbols pass.
type CollateSymbolsOptions struct {
	Cfg     *config.Config
	WorkDir string
}

// CollateSymbols classifies every Symbol as Branch, Tag or Excluded (§4.3),
// consistently project-wide, then verifies the policy invariant of §4.3/§7:
// a symbol may be excluded only if every symbol that ever branched off it
// (its SymbolStats.Blockers) is also excluded. A violation aborts the pass
// with SymbolPolicyError before anything is written (boundary scenario S4).
func CollateSymbolsPass(opts CollateSymbolsOptions) error {
	prev := filepath.Join(opts.WorkDir, CleanMetadata)

	symR, err := store.OpenKeyedStore[*model.Symbol](filepath.Join(prev, "symbols"))
	if err != nil {
		return err
	}
	symbols, err := symR.All()
	symR.Close()
	if err != nil {
		return err
	}

	statsR, err := store.OpenKeyedStore[*model.SymbolStats](filepath.Join(prev, "symbolstats"))
	if err != nil {
		return err
	}
	stats, err := statsR.All()
	statsR.Close()
	if err != nil {
		return err
	}
	statsByID := make(map[model.ID]*model.SymbolStats, len(stats))
	for _, s := range stats {
		statsByID[s.SymbolID] = s
	}

	classOf := make(map[model.ID]model.SymbolClassification, len(symbols))
	for _, sym := range symbols {
		st := statsByID[sym.ID]
		if st == nil {
			st = model.NewSymbolStats(sym.ID)
		}
		classOf[sym.ID] = classify(sym, st, opts.Cfg)
	}

	for _, sym := range symbols {
		if classOf[sym.ID] != model.SymbolExcluded {
			continue
		}
		st := statsByID[sym.ID]
		if st == nil {
			continue
		}
		var live []model.ID
		for blocker := range st.Blockers {
			if classOf[blocker] != model.SymbolExcluded {
				live = append(live, blocker)
			}
		}
		if len(live) > 0 {
			sort.Slice(live, func(i, j int) bool { return live[i] < live[j] })
			return errors.Wrapf(&model.SymbolPolicyError{Symbol: sym.ID, Blockers: live}, "collatesymbols")
		}
	}

	dir, err := store.PassDir(opts.WorkDir, CollateSymbols)
	if err != nil {
		return err
	}
	if err := copyKeyedStore[*model.Item](filepath.Join(prev, "items"), filepath.Join(dir, "items"), CollateSymbols); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.Project](filepath.Join(prev, "projects"), filepath.Join(dir, "projects"), CollateSymbols); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.CVSPath](filepath.Join(prev, "paths"), filepath.Join(dir, "paths"), CollateSymbols); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.Metadata](filepath.Join(prev, "metadata"), filepath.Join(dir, "metadata"), CollateSymbols); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.SymbolStats](filepath.Join(prev, "symbolstats"), filepath.Join(dir, "symbolstats"), CollateSymbols); err != nil {
		return err
	}

	w, err := store.CreateKeyedStore[*model.Symbol](filepath.Join(dir, "symbols"), CollateSymbols)
	if err != nil {
		return err
	}
	for _, sym := range symbols {
		sym.Classification = classOf[sym.ID]
		if err := w.Write(sym); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	return store.Commit(opts.WorkDir, CollateSymbols)
}

// classify applies forced_branches/forced_tags/excluded_symbols first,
// falling back to the observed usage in st: a symbol that was ever used as
// a branch, or carries direct commits on it in any file, is a branch;
// otherwise it is a tag.
func classify(sym *model.Symbol, st *model.SymbolStats, cfg *config.Config) model.SymbolClassification {
	switch {
	case config.AnyMatches(cfg.ExcludedSymbols, sym.Name):
		return model.SymbolExcluded
	case config.AnyMatches(cfg.ForcedBranches, sym.Name):
		return model.SymbolBranch
	case config.AnyMatches(cfg.ForcedTags, sym.Name):
		return model.SymbolTag
	case st.BranchCount > 0 || st.FilesWithBranchCommits > 0:
		return model.SymbolBranch
	default:
		return model.SymbolTag
	}
}
