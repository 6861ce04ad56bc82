package passes

import (
	"crypto/sha1"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/alitto/pond"
	"github.com/sirupsen/logrus"

	"github.com/rcowham/cvs2svn-go/config"
	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/rcs"
	"github.com/rcowham/cvs2svn-go/store"
)

// CollectOptions configures the Collect pass.
type CollectOptions struct {
	Cfg     *config.Config
	Parser  rcs.Parser // e.g. rcs.NewTextParser(logger)
	Logger  *logrus.Logger
	WorkDir string
}

// revInfo is one revision's admin/delta-header data as announced by
// rcs.Parser, before any normalization.
type revInfo struct {
	number   string
	date     time.Time
	author   string
	state    string
	branches []string
	next     string
	log      string
}

// fileBundle is everything Collect's worker goroutines learn about one
// ,v file; the draining goroutine turns it into model.Items without
// touching the filesystem again (§4.1's "per-file bundle released as
// soon as serialized" discipline).
type fileBundle struct {
	path       string
	cvsPath    string
	err        error
	revisions  map[string]*revInfo
	symbolDefs map[string]string // symbol name -> raw recorded revision number
}

// collectSink accumulates one file's admin section and delta headers.
// It never holds revision content: Collect's job is the graph shape,
// not the bytes, so SetRevisionInfo keeps only the log message.
type collectSink struct {
	bundle *fileBundle
}

func (s *collectSink) DefineSymbol(name, revisionNumber string) {
	s.bundle.symbolDefs[name] = revisionNumber
}

func (s *collectSink) DefineRevision(number string, date time.Time, author, state string, branches []string, next string) {
	s.bundle.revisions[number] = &revInfo{
		number:   number,
		date:     date,
		author:   author,
		state:    state,
		branches: append([]string(nil), branches...),
		next:     next,
	}
}

func (s *collectSink) SetRevisionInfo(number, log string, textOrDelta []byte) {
	if r, ok := s.bundle.revisions[number]; ok {
		r.log = log
	}
}

// parseOneFile runs the parser against one ,v file inside a worker.
func parseOneFile(parser rcs.Parser, root, path string) *fileBundle {
	b := &fileBundle{
		path:       path,
		cvsPath:    cvsPathFor(root, path),
		revisions:  make(map[string]*revInfo),
		symbolDefs: make(map[string]string),
	}
	if err := parser.Parse(path, &collectSink{bundle: b}); err != nil {
		b.err = &model.CollectError{File: path, Err: err}
	}
	return b
}

// collectState is the single-threaded receiver every parsed fileBundle
// is drained into; nothing else touches it concurrently (§4.1 Go notes).
type collectState struct {
	cfg *config.Config
	log *logrus.Logger
	gen *model.IDGen

	items    *store.KeyedWriter[*model.Item]
	projects *store.KeyedWriter[*model.Project]
	paths    *store.KeyedWriter[*model.CVSPath]
	symbols  *store.KeyedWriter[*model.Symbol]
	metadata *store.KeyedWriter[*model.Metadata]

	symbolStats  map[model.ID]*model.SymbolStats
	symbolByName map[symbolKey]model.ID
	metaByDigest map[[sha1.Size]byte]model.ID
	pathByName   map[pathKey]model.ID
}

type symbolKey struct {
	project model.ID
	name    string
}

type pathKey struct {
	project model.ID
	path    string
}

// Collect drives rcs.Parser across every RCS file in every configured
// project root, normalizes each file's revision graph, and writes the
// item, symbol-statistics, project/path and metadata stores consumed by
// CleanMetadata and CollateSymbols.
func CollectPass(opts CollectOptions) error {
	dir, err := store.PassDir(opts.WorkDir, Collect)
	if err != nil {
		return err
	}
	gen, err := store.LoadIDGen(opts.WorkDir)
	if err != nil {
		return err
	}

	st := &collectState{
		cfg:          opts.Cfg,
		log:          opts.Logger,
		gen:          gen,
		symbolStats:  make(map[model.ID]*model.SymbolStats),
		symbolByName: make(map[symbolKey]model.ID),
		metaByDigest: make(map[[sha1.Size]byte]model.ID),
		pathByName:   make(map[pathKey]model.ID),
	}

	if st.items, err = store.CreateKeyedStore[*model.Item](filepath.Join(dir, "items"), Collect); err != nil {
		return err
	}
	if st.projects, err = store.CreateKeyedStore[*model.Project](filepath.Join(dir, "projects"), Collect); err != nil {
		return err
	}
	if st.paths, err = store.CreateKeyedStore[*model.CVSPath](filepath.Join(dir, "paths"), Collect); err != nil {
		return err
	}
	if st.symbols, err = store.CreateKeyedStore[*model.Symbol](filepath.Join(dir, "symbols"), Collect); err != nil {
		return err
	}
	if st.metadata, err = store.CreateKeyedStore[*model.Metadata](filepath.Join(dir, "metadata"), Collect); err != nil {
		return err
	}

	for _, root := range opts.Cfg.ProjectRoots {
		if err := st.collectProject(opts, root); err != nil {
			st.closeAll()
			return err
		}
	}

	if err := st.writeSymbolStats(dir); err != nil {
		st.closeAll()
		return err
	}
	if err := st.closeAll(); err != nil {
		return err
	}
	if err := store.SaveIDGen(opts.WorkDir, st.gen); err != nil {
		return err
	}
	return store.Commit(opts.WorkDir, Collect)
}

func (st *collectState) closeAll() error {
	var first error
	closers := []interface{ Close() error }{st.items, st.projects, st.paths, st.symbols, st.metadata}
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (st *collectState) collectProject(opts CollectOptions, root config.ProjectRoot) error {
	project := &model.Project{ID: st.gen.Next(), Name: root.Name, CVSRoot: root.CVSRoot, TrunkPath: root.TrunkPath}
	if err := st.projects.Write(project); err != nil {
		return err
	}

	pondSize := runtime.NumCPU()
	if pondSize < 1 {
		pondSize = 1
	}
	pool := pond.New(pondSize, 0, pond.MinWorkers(4))

	results := make(chan *fileBundle, 64)
	go func() {
		defer close(results)
		defer pool.StopAndWait()
		_ = walkRCSFiles(root.CVSRoot, func(path string) error {
			pool.Submit(func() {
				results <- parseOneFile(opts.Parser, root.CVSRoot, path)
			})
			return nil
		})
	}()

	// Drain into a slice and sort by path, so output order is reproducible
	// regardless of which worker happens to finish first.
	var bundles []*fileBundle
	for b := range results {
		bundles = append(bundles, b)
	}
	sort.Slice(bundles, func(i, j int) bool { return bundles[i].path < bundles[j].path })

	for _, b := range bundles {
		if b.err != nil {
			opts.Logger.WithError(b.err).Errorf("collect: skipping %s", b.path)
			continue
		}
		if err := st.collectFile(project.ID, b); err != nil {
			return err
		}
	}
	return nil
}

// collectFile normalizes one file's revision graph per §4.1 and emits
// its items. Revisions are resolved into ItemRevision items first, then
// symbol definitions into ItemBranch/ItemTag items — a branch or tag
// always forks from a revision, never from another branch/tag creation,
// so this ordering never needs a repair pass for dangling predecessors
// (that happens later, in FilterSymbols, once excluded symbols and their
// items are dropped).
func (st *collectState) collectFile(projectID model.ID, b *fileBundle) error {
	pathID, err := st.internPath(projectID, b.cvsPath)
	if err != nil {
		return err
	}

	normalizeDeadPlaceholders(b)

	// branchParent[branchNumber] = the revision that branch forked from.
	branchParent := make(map[string]string)
	for num, r := range b.revisions {
		for _, child := range r.branches {
			branchParent[branchNumberOf(child)] = num
		}
	}

	if st.cfg.TrunkOnly {
		graftTrunkOnly(b, branchParent)
	}

	// Resolve every symbol definition against the branch table: a symbol
	// is a branch if its (magic-stripped) revision number names a known
	// branch number, otherwise it is a tag on an existing revision.
	lodOf := make(map[string]model.ID) // branch number -> symbol id
	type tagEvent struct {
		symbolID model.ID
		target   string
	}
	type branchEvent struct {
		symbolID     model.ID
		branchNumber string
	}
	var branchEvents []branchEvent
	var tagEvents []tagEvent

	names := make([]string, 0, len(b.symbolDefs))
	for name := range b.symbolDefs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		raw := b.symbolDefs[name]
		bn := stripMagicBranchZero(raw)
		symbolID, err := st.internSymbol(projectID, name)
		if err != nil {
			return err
		}
		if _, ok := branchParent[bn]; ok {
			lodOf[bn] = symbolID
			branchEvents = append(branchEvents, branchEvent{symbolID, bn})
		} else if _, ok := b.revisions[raw]; ok {
			tagEvents = append(tagEvents, tagEvent{symbolID, raw})
		}
	}

	// Pass 1: ItemRevision for every (possibly normalized) revision.
	order := make([]string, 0, len(b.revisions))
	for num := range b.revisions {
		order = append(order, num)
	}
	sort.Slice(order, func(i, j int) bool { return lessRevision(order[i], order[j]) })

	itemIDOf := make(map[string]model.ID)
	branchDependents := make(map[string][]model.ID)

	for _, num := range order {
		r := b.revisions[num]
		lod := model.NoID
		if !onTrunk(num) {
			lod = lodOf[branchNumberOf(num)]
		}
		pred := st.predecessorOf(b, num, itemIDOf)
		metadataID, err := st.internMetadata(projectID, r.author, r.log, lod)
		if err != nil {
			return err
		}
		item := &model.Item{
			ID:                st.gen.Next(),
			Kind:              model.ItemRevision,
			FileID:            pathID,
			ProjectID:         projectID,
			LineOfDevelopment: lod,
			Predecessor:       pred,
			MetadataID:        metadataID,
			Timestamp:         r.date,
			RevisionNumber:    num,
			Deleted:           r.state == "dead",
		}
		if err := st.items.Write(item); err != nil {
			return err
		}
		itemIDOf[num] = item.ID
		if !onTrunk(num) {
			bn := branchNumberOf(num)
			branchDependents[bn] = append(branchDependents[bn], item.ID)
		}
	}

	// Pass 2: ItemBranch creations, now that every revision has an id.
	for _, ev := range branchEvents {
		parent := branchParent[ev.branchNumber]
		parentItemID, ok := itemIDOf[parent]
		if !ok {
			// Parent revision was dropped as a synthetic placeholder
			// (added-on-branch/late-added-on-branch, §4.1): this file
			// contributes no branch-creation item for the symbol, only the
			// direct revisions already written above.
			st.noteSymbolUse(ev.symbolID, false, false)
			continue
		}
		item := &model.Item{
			ID:                     st.gen.Next(),
			Kind:                   model.ItemBranch,
			FileID:                 pathID,
			ProjectID:              projectID,
			LineOfDevelopment:      ev.symbolID,
			SymbolID:               ev.symbolID,
			Predecessor:            parentItemID,
			DependentBranchCommits: branchDependents[ev.branchNumber],
			RevisionNumber:         ev.branchNumber,
		}
		if err := st.items.Write(item); err != nil {
			return err
		}
		st.noteSymbolUse(ev.symbolID, false, true)
		parentLOD := lodOfRevision(parent, lodOf)
		st.notePossibleParent(ev.symbolID, parentLOD)
		if parentLOD != model.NoID {
			st.symbolStats[parentLOD].Blockers[ev.symbolID] = true
		}
		if len(branchDependents[ev.branchNumber]) > 0 {
			st.symbolStats[ev.symbolID].FilesWithBranchCommits++
		}
	}

	// Pass 3: ItemTag creations.
	for _, ev := range tagEvents {
		parentItemID, ok := itemIDOf[ev.target]
		if !ok {
			continue
		}
		item := &model.Item{
			ID:                st.gen.Next(),
			Kind:              model.ItemTag,
			FileID:            pathID,
			ProjectID:         projectID,
			LineOfDevelopment: ev.symbolID,
			SymbolID:          ev.symbolID,
			Predecessor:       parentItemID,
			RevisionNumber:    ev.target,
		}
		if err := st.items.Write(item); err != nil {
			return err
		}
		st.noteSymbolUse(ev.symbolID, true, false)
		st.notePossibleParent(ev.symbolID, lodOfRevision(ev.target, lodOf))
	}

	return nil
}

// lessRevision orders trunk before branches, and within each by numeric
// component comparison (so "1.10" sorts after "1.9", not before "1.2").
func lessRevision(a, bRev string) bool {
	ta, tb := onTrunk(a), onTrunk(bRev)
	if ta != tb {
		return ta
	}
	ca, cb := revComponents(a), revComponents(bRev)
	for i := 0; i < len(ca) && i < len(cb); i++ {
		if ca[i] != cb[i] {
			return ca[i] < cb[i]
		}
	}
	return len(ca) < len(cb)
}

// predecessorOf returns the item id this revision causally depends on:
// the revision committed immediately before it on the same line of
// development, or NoID if it is the first revision of its LOD.
//
// Trunk deltas are stored in reverse (head holds full text; next walks
// toward 1.1), so on trunk X.next == Y means Y was committed before X.
// Branch deltas are forward (next walks away from the branchpoint), so
// on a branch X.next == Y means X was committed before Y — the
// predecessor relationship mirrors trunk's.
func (st *collectState) predecessorOf(b *fileBundle, num string, itemIDOf map[string]model.ID) model.ID {
	if onTrunk(num) {
		r := b.revisions[num]
		if r.next == "" {
			return model.NoID
		}
		if id, ok := itemIDOf[r.next]; ok {
			return id
		}
		return model.NoID
	}
	bn := branchNumberOf(num)
	for other, r := range b.revisions {
		if other != num && branchNumberOf(other) == bn && r.next == num {
			if id, ok := itemIDOf[other]; ok {
				return id
			}
		}
	}
	return model.NoID
}

func lodOfRevision(num string, lodOf map[string]model.ID) model.ID {
	if onTrunk(num) {
		return model.NoID
	}
	return lodOf[branchNumberOf(num)]
}

// normalizeDeadPlaceholders drops the synthetic bookkeeping revisions
// described in §4.1: a trunk chain consisting of a single dead revision
// that exists only to carry a branch's fork point is CVS's marker for a
// file added-on-branch (or, with an extra dead revision at the fork
// point, late-added-on-branch); either way the placeholder carries no
// real content and is dropped so it never becomes an ItemRevision.
// A vendor-branch head (§4.1) is told apart by carrying a real log
// message and is kept.
func normalizeDeadPlaceholders(b *fileBundle) {
	var trunkNums []string
	for num := range b.revisions {
		if onTrunk(num) {
			trunkNums = append(trunkNums, num)
		}
	}
	if len(trunkNums) != 1 {
		return
	}
	only := b.revisions[trunkNums[0]]
	if only.state != "dead" || len(only.branches) == 0 || only.log != "" {
		return
	}
	delete(b.revisions, only.number)
}

// graftTrunkOnly implements the trunk_only configuration option (§4.1):
// the vendor branch's (1.1.1.x) revisions are renumbered onto trunk and
// every other branch is dropped entirely, along with its revisions and
// symbol definitions.
func graftTrunkOnly(b *fileBundle, branchParent map[string]string) {
	const vendor = "1.1.1"
	if _, ok := branchParent[vendor]; ok {
		for num, r := range b.revisions {
			if branchNumberOf(num) != vendor {
				continue
			}
			comps := revComponents(num)
			grafted := fmt.Sprintf("1.%d", comps[len(comps)-1]+1)
			r.number = grafted
			b.revisions[grafted] = r
			delete(b.revisions, num)
		}
	}
	for num := range b.revisions {
		if !onTrunk(num) {
			delete(b.revisions, num)
		}
	}
	for name, raw := range b.symbolDefs {
		if branchNumberOf(raw) != vendor {
			if _, ok := branchParent[stripMagicBranchZero(raw)]; ok {
				delete(b.symbolDefs, name)
			}
		}
	}
}

func (st *collectState) internPath(projectID model.ID, path string) (model.ID, error) {
	key := pathKey{project: projectID, path: path}
	if id, ok := st.pathByName[key]; ok {
		return id, nil
	}
	id := st.gen.Next()
	st.pathByName[key] = id
	if err := st.paths.Write(&model.CVSPath{ID: id, ProjectID: projectID, Kind: model.CVSPathFile, Path: path}); err != nil {
		return 0, err
	}
	return id, nil
}

func (st *collectState) internSymbol(projectID model.ID, name string) (model.ID, error) {
	key := symbolKey{project: projectID, name: name}
	if id, ok := st.symbolByName[key]; ok {
		return id, nil
	}
	id := st.gen.Next()
	st.symbolByName[key] = id
	if err := st.symbols.Write(&model.Symbol{ID: id, ProjectID: projectID, Name: name}); err != nil {
		return 0, err
	}
	st.symbolStats[id] = model.NewSymbolStats(id)
	return id, nil
}

func (st *collectState) internMetadata(projectID model.ID, author, log string, lod model.ID) (model.ID, error) {
	branch := ""
	if lod != model.NoID {
		branch = fmt.Sprint(lod)
	}
	digest := model.DigestKey(author, log, projectID, branch, !st.cfg.CrossProjectCommits, !st.cfg.CrossBranchCommits)
	if id, ok := st.metaByDigest[digest]; ok {
		return id, nil
	}
	id := st.gen.Next()
	st.metaByDigest[digest] = id
	if err := st.metadata.Write(&model.Metadata{ID: id, Digest: digest, Author: author, Log: log}); err != nil {
		return 0, err
	}
	return id, nil
}

func (st *collectState) noteSymbolUse(symbolID model.ID, tag, branch bool) {
	stats := st.symbolStats[symbolID]
	if stats == nil {
		stats = model.NewSymbolStats(symbolID)
		st.symbolStats[symbolID] = stats
	}
	if tag {
		stats.TagCount++
	}
	if branch {
		stats.BranchCount++
	}
}

func (st *collectState) notePossibleParent(symbolID, lod model.ID) {
	st.symbolStats[symbolID].PossibleParents[lod]++
}

func (st *collectState) writeSymbolStats(dir string) error {
	w, err := store.CreateKeyedStore[*model.SymbolStats](filepath.Join(dir, "symbolstats"), Collect)
	if err != nil {
		return err
	}
	ids := make([]model.ID, 0, len(st.symbolStats))
	for id := range st.symbolStats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := w.Write(st.symbolStats[id]); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}
