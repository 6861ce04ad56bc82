package passes

import (
	"path/filepath"
	"time"

	"github.com/rcowham/cvs2svn-go/graph"
	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/store"
)

// RevisionTopoSortOptions configures the RevisionTopologicalSort pass.
type RevisionTopoSortOptions struct {
	WorkDir string
}

// RevisionTopoSortPass freezes the now-acyclic revision changesets into a
// total commit order (§4.8), breaking ties between simultaneously-ready
// changesets by earliest representative timestamp. Ordered,
// Predecessor and Successor are set on every revision changeset; symbol
// changesets are untouched until BreakSymbolChangesetCycles (§4.9)
// reconsiders them against this now-fixed spine.
func RevisionTopoSortPass(opts RevisionTopoSortOptions) error {
	prev := filepath.Join(opts.WorkDir, BreakRevisionCycles)

	changesets, err := loadChangesets(filepath.Join(prev, "changesets"))
	if err != nil {
		return err
	}
	itemByID, items, err := loadItems(filepath.Join(prev, "items"))
	if err != nil {
		return err
	}

	onlyRevision := func(cs *model.Changeset) bool { return cs.Kind == model.ChangesetRevision }
	g := buildGraph(changesets, onlyRevision)

	timeOf := make(map[model.ID]time.Time, len(changesets))
	for _, cs := range changesets {
		if onlyRevision(cs) {
			timeOf[cs.ID] = representativeTime(cs, itemByID)
		}
	}
	res := graph.Topo(g, func(a, b model.ID) bool {
		ta, tb := timeOf[a], timeOf[b]
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return a < b
	})
	if res.Stalled {
		return wrapUnbreakable(res.Cycle, "revision changesets still cyclic after BreakRevisionChangesetCycles")
	}

	for i, id := range res.Order {
		cs := changesets[id]
		cs.Ordered = true
		cs.Predecessor = model.NoID
		cs.Successor = model.NoID
		if i > 0 {
			cs.Predecessor = res.Order[i-1]
		}
		if i < len(res.Order)-1 {
			cs.Successor = res.Order[i+1]
		}
	}

	dir, err := store.PassDir(opts.WorkDir, RevisionTopologicalSort)
	if err != nil {
		return err
	}
	if err := writeChangesets(filepath.Join(dir, "changesets"), RevisionTopologicalSort, changesets); err != nil {
		return err
	}
	if err := writeItems(filepath.Join(dir, "items"), RevisionTopologicalSort, items); err != nil {
		return err
	}
	if err := passThroughChangesetStores(prev, dir, RevisionTopologicalSort); err != nil {
		return err
	}
	return store.Commit(opts.WorkDir, RevisionTopologicalSort)
}

// representativeTime is the latest item timestamp in a revision changeset
// (the moment the commit completed), or the latest base-revision
// timestamp for a symbol changeset (branch/tag items never carry their
// own Timestamp; they inherit the revision they were cut from).
func representativeTime(cs *model.Changeset, itemByID map[model.ID]*model.Item) time.Time {
	var best time.Time
	for _, id := range cs.Items {
		it := itemByID[id]
		if it == nil {
			continue
		}
		t := it.Timestamp
		if t.IsZero() {
			if base := itemByID[it.Predecessor]; base != nil {
				t = base.Timestamp
			}
		}
		if t.After(best) {
			best = t
		}
	}
	return best
}
