package passes

import (
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/rcowham/cvs2svn-go/config"
	"github.com/rcowham/cvs2svn-go/graph"
	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/store"
)

// InitializeChangesetsOptions configures the InitializeChangesets pass.
type InitializeChangesetsOptions struct {
	Cfg     *config.Config
	WorkDir string
}

// InitializeChangesets drafts the revision and symbol changesets (§4.6):
// revisions are grouped by (metadata id, commit-threshold-bounded time
// gap), symbol items are grouped one changeset per symbol, and any group
// that turns out to hold an internal dependency (two of its own items
// depend on each other) is recursively split with graph.BestSplit until
// none does (§8 property 5, "internal-dependency freedom").
func InitializeChangesetsPass(opts InitializeChangesetsOptions) error {
	prev := filepath.Join(opts.WorkDir, SortSymbols)

	itemR, err := store.OpenKeyedStore[*model.Item](filepath.Join(prev, "items"))
	if err != nil {
		return err
	}
	items, err := itemR.All()
	itemR.Close()
	if err != nil {
		return err
	}
	itemByID := make(map[model.ID]*model.Item, len(items))
	for _, it := range items {
		itemByID[it.ID] = it
	}

	revLines, err := readAllLines(filepath.Join(prev, "revisions.stream"))
	if err != nil {
		return err
	}
	symLines, err := readAllLines(filepath.Join(prev, "symbols.stream"))
	if err != nil {
		return err
	}

	gen, err := store.LoadIDGen(opts.WorkDir)
	if err != nil {
		return err
	}

	threshold := time.Duration(opts.Cfg.CommitThresholdSeconds) * time.Second
	itemToChangeset := make(map[model.ID]model.ID)
	var changesets []*model.Changeset

	for _, group := range groupRevisionLines(revLines, threshold) {
		ids := make([]model.ID, len(group))
		for i, line := range group {
			ids[i] = model.ID(fieldInt(line, 0))
		}
		for _, cs := range splitRevisionGroup(ids, itemByID, gen) {
			changesets = append(changesets, cs)
			for _, id := range cs.Items {
				itemToChangeset[id] = cs.ID
			}
		}
	}

	for _, group := range groupSymbolLines(symLines) {
		symbolID := model.ID(fieldInt(group[0], 1))
		cs := model.NewSymbolChangeset(gen.Next(), symbolID)
		for _, line := range group {
			cs.Items = append(cs.Items, model.ID(fieldInt(line, 0)))
		}
		sort.Slice(cs.Items, func(i, j int) bool { return cs.Items[i] < cs.Items[j] })
		changesets = append(changesets, cs)
		for _, id := range cs.Items {
			itemToChangeset[id] = cs.ID
		}
	}

	changesetByID := make(map[model.ID]*model.Changeset, len(changesets))
	for _, cs := range changesets {
		changesetByID[cs.ID] = cs
	}
	recomputeDependencies(changesetByID, itemByID, itemToChangeset)

	dir, err := store.PassDir(opts.WorkDir, InitializeChangesets)
	if err != nil {
		return err
	}

	sort.Slice(changesets, func(i, j int) bool { return changesets[i].ID < changesets[j].ID })
	csW, err := store.CreateKeyedStore[*model.Changeset](filepath.Join(dir, "changesets"), InitializeChangesets)
	if err != nil {
		return err
	}
	for _, cs := range changesets {
		if err := csW.Write(cs); err != nil {
			csW.Close()
			return err
		}
	}
	if err := csW.Close(); err != nil {
		return err
	}

	// Items are re-emitted grouped by their owning changeset, then by id
	// within it, so a later pass streaming the item store sees each
	// changeset's members contiguously (§6 "keyed stores with a separate
	// offset index" shape still applies; this just picks a friendlier
	// physical order).
	sort.Slice(items, func(i, j int) bool {
		ci, cj := itemToChangeset[items[i].ID], itemToChangeset[items[j].ID]
		if ci != cj {
			return ci < cj
		}
		return items[i].ID < items[j].ID
	})
	itemW, err := store.CreateKeyedStore[*model.Item](filepath.Join(dir, "items"), InitializeChangesets)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := itemW.Write(it); err != nil {
			itemW.Close()
			return err
		}
	}
	if err := itemW.Close(); err != nil {
		return err
	}

	if err := copyKeyedStore[*model.Project](filepath.Join(prev, "projects"), filepath.Join(dir, "projects"), InitializeChangesets); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.CVSPath](filepath.Join(prev, "paths"), filepath.Join(dir, "paths"), InitializeChangesets); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.Metadata](filepath.Join(prev, "metadata"), filepath.Join(dir, "metadata"), InitializeChangesets); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.Symbol](filepath.Join(prev, "symbols"), filepath.Join(dir, "symbols"), InitializeChangesets); err != nil {
		return err
	}

	if err := store.SaveIDGen(opts.WorkDir, gen); err != nil {
		return err
	}
	return store.Commit(opts.WorkDir, InitializeChangesets)
}

func readAllLines(path string) ([]string, error) {
	r, err := store.OpenLineStream(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var lines []string
	for {
		line, err := r.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// groupRevisionLines splits the sorted "ITEMID METADATAID TIMESTAMP"
// stream into draft commit groups: a new group starts whenever the
// metadata id changes or the gap since the previous line in the current
// group exceeds threshold (§4.6).
func groupRevisionLines(lines []string, threshold time.Duration) [][]string {
	var groups [][]string
	var cur []string
	var prevMeta int64
	var prevTime time.Time
	for i, line := range lines {
		meta := fieldInt(line, 1)
		ts := time.Unix(fieldInt(line, 2), 0)
		if i > 0 && (meta != prevMeta || ts.Sub(prevTime) > threshold) {
			groups = append(groups, cur)
			cur = nil
		}
		cur = append(cur, line)
		prevMeta, prevTime = meta, ts
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// groupSymbolLines splits the sorted "ITEMID SYMBOLID" stream into one
// group per distinct symbol id.
func groupSymbolLines(lines []string) [][]string {
	var groups [][]string
	var cur []string
	var prevSymbol int64
	for i, line := range lines {
		sym := fieldInt(line, 1)
		if i > 0 && sym != prevSymbol {
			groups = append(groups, cur)
			cur = nil
		}
		cur = append(cur, line)
		prevSymbol = sym
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// splitRevisionGroup turns one draft commit group into one or more
// RevisionChangesets, recursively halving it with graph.BestSplit
// whenever an item in the group depends (via Predecessor) on another
// item of the same group.
func splitRevisionGroup(ids []model.ID, itemByID map[model.ID]*model.Item, gen *model.IDGen) []*model.Changeset {
	sort.Slice(ids, func(i, j int) bool { return itemByID[ids[i]].Timestamp.Before(itemByID[ids[j]].Timestamp) })

	if !hasInternalDependency(ids, itemByID) {
		cs := model.NewRevisionChangeset(gen.Next())
		cs.Items = append(cs.Items, ids...)
		sort.Slice(cs.Items, func(i, j int) bool { return cs.Items[i] < cs.Items[j] })
		return []*model.Changeset{cs}
	}

	indexOf := make(map[model.ID]int, len(ids))
	inSet := make(map[model.ID]bool, len(ids))
	for i, id := range ids {
		indexOf[id] = i
		inSet[id] = true
	}
	// score(i) counts internal-dependency edges (pred, item) actually
	// severed by cutting before index i: pred ends up in the earlier
	// partition and item in the later one. Predecessor timestamps never
	// exceed their dependent's, so predIdx <= idx always; an edge
	// contributes once it straddles the cut, and recursion handles
	// whatever edges still share a partition.
	best, ok := graph.BestSplit(len(ids), func(i int) graph.SplitScore {
		cut := 0
		for idx, id := range ids {
			pred := itemByID[id].Predecessor
			if pred == model.NoID || !inSet[pred] {
				continue
			}
			if predIdx := indexOf[pred]; predIdx < i && idx >= i {
				cut++
			}
		}
		return graph.SplitScore{CutIndex: i, CycleEdgesCut: cut}
	})
	if !ok {
		cs := model.NewRevisionChangeset(gen.Next())
		cs.Items = append(cs.Items, ids...)
		return []*model.Changeset{cs}
	}
	left := splitRevisionGroup(append([]model.ID(nil), ids[:best.CutIndex]...), itemByID, gen)
	right := splitRevisionGroup(append([]model.ID(nil), ids[best.CutIndex:]...), itemByID, gen)
	return append(left, right...)
}

func hasInternalDependency(ids []model.ID, itemByID map[model.ID]*model.Item) bool {
	inSet := make(map[model.ID]bool, len(ids))
	for _, id := range ids {
		inSet[id] = true
	}
	for _, id := range ids {
		if pred := itemByID[id].Predecessor; pred != model.NoID && inSet[pred] {
			return true
		}
	}
	return false
}
