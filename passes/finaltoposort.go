package passes

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/rcowham/cvs2svn-go/graph"
	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/store"
)

// FinalTopoSortOptions configures the FinalTopologicalSort pass.
type FinalTopoSortOptions struct {
	WorkDir string
	Now     time.Time
}

// FinalTopoSortPass produces the single commit order the sink replays
// (§4.11): a topological sort of the full acyclic graph BreakAllChangesetCycles
// left behind, breaking simultaneous-readiness ties in favour of symbol
// changesets (a branch or tag should appear as close as possible to the
// revision that sprouted it, ahead of later revisions that depend on it
// existing) and then by representative timestamp.
func FinalTopoSortPass(opts FinalTopoSortOptions) error {
	prev := filepath.Join(opts.WorkDir, BreakAllCycles)
	dir, err := store.PassDir(opts.WorkDir, FinalTopologicalSort)
	if err != nil {
		return err
	}

	changesets, err := loadChangesets(filepath.Join(prev, "changesets"))
	if err != nil {
		return err
	}
	itemByID, items, err := loadItems(filepath.Join(prev, "items"))
	if err != nil {
		return err
	}

	includeAll := func(*model.Changeset) bool { return true }
	g := buildFullGraph(changesets, includeAll)

	timeOf := make(map[model.ID]time.Time, len(changesets))
	for _, cs := range changesets {
		timeOf[cs.ID] = representativeTime(cs, itemByID)
	}
	isSymbol := func(id model.ID) bool { return changesets[id].Kind == model.ChangesetSymbol }

	res := graph.Topo(g, func(a, b model.ID) bool {
		sa, sb := isSymbol(a), isSymbol(b)
		if sa != sb {
			return sa
		}
		ta, tb := timeOf[a], timeOf[b]
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return a < b
	})
	if res.Stalled {
		return wrapUnbreakable(res.Cycle, "changesets still cyclic after BreakAllChangesetCycles")
	}

	stream, err := store.CreateLineStream(filepath.Join(dir, "commitorder.stream"), FinalTopologicalSort)
	if err != nil {
		return err
	}

	now := opts.Now
	var last time.Time
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

		t := timeOf[id]
		if !now.IsZero() && t.After(now) {
			if i > 0 {
				t = last.Add(time.Second)
			} else {
				t = now
			}
		}
		if i > 0 && !t.After(last) {
			t = last.Add(time.Second)
		}
		cs.CommitTime = t
		last = t

		if err := stream.WriteFields(strconv.FormatInt(int64(id), 10), strconv.FormatInt(t.Unix(), 10)); err != nil {
			stream.Close()
			return err
		}
	}
	if err := stream.Close(); err != nil {
		return err
	}

	if err := writeChangesets(filepath.Join(dir, "changesets"), FinalTopologicalSort, changesets); err != nil {
		return err
	}
	if err := writeItems(filepath.Join(dir, "items"), FinalTopologicalSort, items); err != nil {
		return err
	}
	if err := passThroughChangesetStores(prev, dir, FinalTopologicalSort); err != nil {
		return err
	}
	return store.Commit(opts.WorkDir, FinalTopologicalSort)
}
