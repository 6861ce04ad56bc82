// Package pipeline drives the twelve file-based passes of the
// changeset synthesis pipeline (§4) in order and then replays the
// resulting commit order through a sink.Sink, the orchestration layer
// named but not implemented by any single pass.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rcowham/cvs2svn-go/config"
	"github.com/rcowham/cvs2svn-go/dumpfile"
	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/passes"
	"github.com/rcowham/cvs2svn-go/rcs"
	"github.com/rcowham/cvs2svn-go/revsource"
	"github.com/rcowham/cvs2svn-go/sink"
	"github.com/rcowham/cvs2svn-go/store"
)

// Options configures one end-to-end conversion run.
type Options struct {
	Cfg     *config.Config
	Parser  rcs.Parser
	Logger  *logrus.Logger
	WorkDir string

	// ResumeFrom names a pass to restart from, discarding its output and
	// every later pass's output first (§5). Empty means start (or
	// continue) from the first undone pass.
	ResumeFrom string

	// DryRun runs every synthesis pass but skips the final sink replay,
	// so a conversion can be validated without writing a dump file.
	DryRun bool

	// MaxChangesets caps how many changesets from the final commit order
	// are replayed, 0 meaning no cap — for a quick look at a large
	// archive's early history.
	MaxChangesets int

	// DumpWriter receives the SVN dump stream. Required unless DryRun.
	DumpWriter *dumpfile.Writer

	// UUID is written into the dump file header (§6).
	UUID string

	// ExternalCO, if true, reconstructs revision content by shelling out
	// to `co` (revsource.ExternalReader) instead of replaying RCS deltas
	// in-process.
	ExternalCO bool

	// Now fixes the clock FinalTopologicalSort clamps commit times
	// against; the zero value disables clamping (tests want this
	// deterministic, §9).
	Now time.Time
}

// Result summarizes a completed run.
type Result struct {
	ChangesetsCommitted int
	Openings            []sink.OpeningClosing
}

// Run executes every pass in passes.Order that is not already committed
// under opts.WorkDir, then (unless DryRun) replays the resulting commit
// order through opts.DumpWriter.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	if opts.ResumeFrom != "" {
		if err := discardFrom(opts.WorkDir, opts.ResumeFrom); err != nil {
			return nil, err
		}
	}

	for _, pass := range passes.Order {
		if store.Done(opts.WorkDir, pass) {
			opts.Logger.Infof("pipeline: %s already done, skipping", pass)
			continue
		}
		opts.Logger.Infof("pipeline: running %s", pass)
		if err := runPass(pass, opts); err != nil {
			if derr := store.DiscardIncomplete(opts.WorkDir, pass); derr != nil {
				opts.Logger.WithError(derr).Warnf("pipeline: discarding incomplete %s", pass)
			}
			return nil, errors.Wrapf(err, "pipeline: pass %s failed", pass)
		}
	}

	if opts.DryRun {
		return &Result{}, nil
	}
	return replay(ctx, opts)
}

// discardFrom removes the committed (and any incomplete) output of pass
// and every later pass, so Run recomputes them.
func discardFrom(workDir, from string) error {
	idx := -1
	for i, p := range passes.Order {
		if p == from {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("pipeline: unknown --resume-from pass %q", from)
	}
	for _, p := range passes.Order[idx:] {
		if err := os.RemoveAll(filepath.Join(workDir, p)); err != nil {
			return fmt.Errorf("pipeline: clearing %s for resume: %w", p, err)
		}
		if err := store.DiscardIncomplete(workDir, p); err != nil {
			return fmt.Errorf("pipeline: clearing incomplete %s for resume: %w", p, err)
		}
	}
	return nil
}

func runPass(pass string, opts Options) error {
	switch pass {
	case passes.Collect:
		return passes.CollectPass(passes.CollectOptions{Cfg: opts.Cfg, Parser: opts.Parser, Logger: opts.Logger, WorkDir: opts.WorkDir})
	case passes.CleanMetadata:
		return passes.CleanMetadataPass(passes.CleanMetadataOptions{Cfg: opts.Cfg, WorkDir: opts.WorkDir})
	case passes.CollateSymbols:
		return passes.CollateSymbolsPass(passes.CollateSymbolsOptions{Cfg: opts.Cfg, WorkDir: opts.WorkDir})
	case passes.FilterSymbols:
		return passes.FilterSymbolsPass(passes.FilterSymbolsOptions{Cfg: opts.Cfg, WorkDir: opts.WorkDir})
	case passes.SortRevisions:
		return passes.SortRevisionsPass(passes.SortOptions{Cfg: opts.Cfg, WorkDir: opts.WorkDir})
	case passes.SortSymbols:
		return passes.SortSymbolsPass(passes.SortOptions{Cfg: opts.Cfg, WorkDir: opts.WorkDir})
	case passes.InitializeChangesets:
		return passes.InitializeChangesetsPass(passes.InitializeChangesetsOptions{Cfg: opts.Cfg, WorkDir: opts.WorkDir})
	case passes.BreakRevisionCycles:
		return passes.BreakRevisionCyclesPass(passes.BreakRevisionCyclesOptions{WorkDir: opts.WorkDir})
	case passes.RevisionTopologicalSort:
		return passes.RevisionTopoSortPass(passes.RevisionTopoSortOptions{WorkDir: opts.WorkDir})
	case passes.BreakSymbolCycles:
		return passes.BreakSymbolCyclesPass(passes.BreakSymbolCyclesOptions{WorkDir: opts.WorkDir})
	case passes.BreakAllCycles:
		return passes.BreakAllCyclesPass(passes.BreakAllCyclesOptions{WorkDir: opts.WorkDir})
	case passes.FinalTopologicalSort:
		return passes.FinalTopoSortPass(passes.FinalTopoSortOptions{WorkDir: opts.WorkDir, Now: opts.Now})
	default:
		return fmt.Errorf("pipeline: unknown pass %q", pass)
	}
}

// finalStores bundles everything replay needs out of the
// FinalTopologicalSort directory.
type finalStores struct {
	changesets map[model.ID]*model.Changeset
	items      map[model.ID]*model.Item
	projects   map[model.ID]*model.Project
	paths      map[model.ID]*model.CVSPath
	metadata   map[model.ID]*model.Metadata
	symbols    map[model.ID]*model.Symbol
	order      []orderEntry
}

type orderEntry struct {
	changesetID model.ID
	commitTime  time.Time
}

func loadFinalStores(dir string) (*finalStores, error) {
	fs := &finalStores{}

	changesets, err := loadMap[*model.Changeset](filepath.Join(dir, "changesets"))
	if err != nil {
		return nil, err
	}
	fs.changesets = changesets

	items, err := loadMap[*model.Item](filepath.Join(dir, "items"))
	if err != nil {
		return nil, err
	}
	fs.items = items

	projects, err := loadMap[*model.Project](filepath.Join(dir, "projects"))
	if err != nil {
		return nil, err
	}
	fs.projects = projects

	paths, err := loadMap[*model.CVSPath](filepath.Join(dir, "paths"))
	if err != nil {
		return nil, err
	}
	fs.paths = paths

	metadata, err := loadMap[*model.Metadata](filepath.Join(dir, "metadata"))
	if err != nil {
		return nil, err
	}
	fs.metadata = metadata

	symbols, err := loadMap[*model.Symbol](filepath.Join(dir, "symbols"))
	if err != nil {
		return nil, err
	}
	fs.symbols = symbols

	stream, err := store.OpenLineStream(filepath.Join(dir, "commitorder.stream"))
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	for {
		fields, err := stream.ReadFields()
		if err != nil {
			break
		}
		if len(fields) < 2 {
			continue
		}
		id := parseID(fields[0])
		sec := parseID(fields[1])
		fs.order = append(fs.order, orderEntry{changesetID: id, commitTime: time.Unix(int64(sec), 0).UTC()})
	}
	return fs, nil
}

func loadMap[T store.Record](path string) (map[model.ID]T, error) {
	r, err := store.OpenKeyedStore[T](path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	all, err := r.All()
	if err != nil {
		return nil, err
	}
	out := make(map[model.ID]T, len(all))
	for _, rec := range all {
		out[rec.GetID()] = rec
	}
	return out, nil
}

func parseID(s string) model.ID {
	var n int64
	fmt.Sscanf(s, "%d", &n)
	return model.ID(n)
}

// replay reads FinalTopologicalSort's output and drives opts.DumpWriter
// through sink.Sink, one changeset at a time in commit order.
func replay(ctx context.Context, opts Options) (*Result, error) {
	dir := filepath.Join(opts.WorkDir, passes.FinalTopologicalSort)
	fs, err := loadFinalStores(dir)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline: loading final stores")
	}

	locator := revsource.FileLocatorFunc(func(fileID model.ID) (string, error) {
		p, ok := fs.paths[fileID]
		if !ok {
			return "", fmt.Errorf("pipeline: no path recorded for file %d", fileID)
		}
		proj, ok := fs.projects[p.ProjectID]
		if !ok {
			return "", fmt.Errorf("pipeline: no project recorded for file %d", fileID)
		}
		return locateRCSFile(proj.CVSRoot, p.Path), nil
	})

	var reader revsource.Reader
	if opts.ExternalCO {
		reader = revsource.NewExternalReader(locator, opts.Logger)
	} else {
		reader = revsource.NewInProcessReader(opts.Parser, locator)
	}

	s := sink.NewDumpSink(opts.DumpWriter, reader, opts.Logger)
	s.KeepCVSIgnore = opts.Cfg.KeepCVSIgnore

	if err := opts.DumpWriter.WriteHeader(opts.UUID); err != nil {
		return nil, errors.Wrap(err, "pipeline: writing dump header")
	}

	order := fs.order
	if opts.MaxChangesets > 0 && len(order) > opts.MaxChangesets {
		opts.Logger.Infof("pipeline: truncating replay to %d of %d changesets", opts.MaxChangesets, len(order))
		order = order[:opts.MaxChangesets]
	}

	// itemRevnum records the SVN revision each item was committed at, so
	// a later branch/tag creation can name the right Node-copyfrom-rev
	// for its parent line of development (§4.4 step 3). DumpSink
	// increments its own counter once per Commit call in the same order,
	// so this mirrors it exactly as long as every call here that reaches
	// s.Commit carries at least one member.
	itemRevnum := make(map[model.ID]int)

	committed := 0
	for _, entry := range order {
		cs, ok := fs.changesets[entry.changesetID]
		if !ok {
			return nil, fmt.Errorf("pipeline: commit order names unknown changeset %d", entry.changesetID)
		}
		members, err := buildMembersFor(cs, fs, itemRevnum)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline: building members for changeset %d", cs.ID)
		}
		if len(members) == 0 {
			continue
		}
		if err := s.Commit(ctx, cs.ID, entry.commitTime, members); err != nil {
			return nil, errors.Wrapf(err, "pipeline: committing changeset %d", cs.ID)
		}
		committed++
		for _, id := range cs.Items {
			itemRevnum[id] = committed
		}
	}
	if err := opts.DumpWriter.Flush(); err != nil {
		return nil, errors.Wrap(err, "pipeline: flushing dump file")
	}

	return &Result{ChangesetsCommitted: committed, Openings: s.Openings()}, nil
}

// buildMembersFor turns a revision changeset's items into one
// RevisionMember each. A symbol changeset instead collapses to a
// single SymbolMember: §4.6 groups every branch/tag item for one
// symbol into one changeset, but the branch or tag itself is a single
// directory copy in SVN terms (§6), made once from whichever line of
// development the symbol's first item forked from; any further items
// in the same changeset name other files the symbol also touches and
// need no SVN action of their own since the directory copy already
// carries them.
func buildMembersFor(cs *model.Changeset, fs *finalStores, itemRevnum map[model.ID]int) ([]sink.Member, error) {
	if cs.Kind == model.ChangesetSymbol {
		m, err := buildSymbolMember(cs, fs, itemRevnum)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, nil
		}
		return []sink.Member{{Symbol: m}}, nil
	}

	ids := append([]model.ID(nil), cs.Items...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	members := make([]sink.Member, 0, len(ids))
	for _, id := range ids {
		it, ok := fs.items[id]
		if !ok || it.Kind != model.ItemRevision {
			continue
		}
		m, err := buildRevisionMember(it, fs)
		if err != nil {
			return nil, err
		}
		members = append(members, sink.Member{Revision: m})
	}
	return members, nil
}

func buildRevisionMember(it *model.Item, fs *finalStores) (*sink.RevisionMember, error) {
	path, err := svnPath(it.FileID, it.LineOfDevelopment, fs)
	if err != nil {
		return nil, err
	}
	meta := fs.metadata[it.MetadataID]
	if meta == nil {
		meta = &model.Metadata{}
	}

	action := dumpfile.ActionChange
	switch {
	case it.Predecessor == model.NoID:
		action = dumpfile.ActionAdd
	case it.Deleted:
		action = dumpfile.ActionDelete
	}

	return &sink.RevisionMember{
		FileID:         it.FileID,
		Path:           path,
		RevisionNumber: it.RevisionNumber,
		Action:         action,
		Author:         meta.Author,
		Log:            meta.Log,
		Opens:          it.Opens,
		Closes:         it.Closes,
	}, nil
}

// buildSymbolMember picks the first branch/tag item in cs (by id, for
// determinism) as representative and resolves the directory this
// symbol's root is copied from: the line of development its
// predecessor revision lived on, at the SVN revision that predecessor
// was last committed at (§4.4 step 3).
func buildSymbolMember(cs *model.Changeset, fs *finalStores, itemRevnum map[model.ID]int) (*sink.SymbolMember, error) {
	var rep *model.Item
	ids := append([]model.ID(nil), cs.Items...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		it := fs.items[id]
		if it != nil && (it.Kind == model.ItemBranch || it.Kind == model.ItemTag) {
			rep = it
			break
		}
	}
	if rep == nil {
		return nil, nil
	}

	sym := fs.symbols[rep.SymbolID]
	if sym == nil {
		return nil, fmt.Errorf("pipeline: no symbol recorded for id %d", rep.SymbolID)
	}

	pred := fs.items[rep.Predecessor]
	if pred == nil {
		return nil, fmt.Errorf("pipeline: branch/tag item %d has no recorded predecessor", rep.ID)
	}
	copyPath, err := svnRootPath(pred.LineOfDevelopment, fs)
	if err != nil {
		return nil, err
	}

	return &sink.SymbolMember{
		SymbolID:     rep.SymbolID,
		Kind:         rep.Kind,
		Name:         sym.Name,
		CopyFromPath: copyPath,
		CopyFromRev:  itemRevnum[rep.Predecessor],
	}, nil
}

// svnRootPath is svnPath without a per-file suffix, naming a whole line
// of development's directory.
func svnRootPath(lod model.ID, fs *finalStores) (string, error) {
	if lod == model.NoID {
		return "trunk", nil
	}
	sym := fs.symbols[lod]
	if sym == nil {
		return "", fmt.Errorf("pipeline: no symbol recorded for line of development %d", lod)
	}
	root := "branches"
	if sym.Classification == model.SymbolTag {
		root = "tags"
	}
	return root + "/" + sym.Name, nil
}

// svnPath resolves a file's path within the dump: trunk/<cvspath> on
// the main line of development, or branches|tags/<symbol>/<cvspath> on
// a branch or tag, mirroring the layout sink_test.go exercises.
func svnPath(fileID, lod model.ID, fs *finalStores) (string, error) {
	p, ok := fs.paths[fileID]
	if !ok {
		return "", fmt.Errorf("pipeline: no path recorded for file %d", fileID)
	}
	root, err := svnRootPath(lod, fs)
	if err != nil {
		return "", err
	}
	return root + "/" + p.Path, nil
}

// locateRCSFile turns a normalized CVS path (Attic stripped, ",v"
// stripped by cvsPathFor) back into the real file on disk, trying both
// the plain and Attic locations since Collect's cvsPathFor does not
// record which one a given file lived in.
func locateRCSFile(cvsRoot, path string) string {
	plain := filepath.Join(cvsRoot, filepath.FromSlash(path)) + ",v"
	if _, err := os.Stat(plain); err == nil {
		return plain
	}
	dir := filepath.Dir(plain)
	base := filepath.Base(plain)
	attic := filepath.Join(dir, "Attic", base)
	if _, err := os.Stat(attic); err == nil {
		return attic
	}
	return plain
}
