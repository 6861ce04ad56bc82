package main

// cvs2svn-go converts a CVS repository into an SVN dump file.
//
// Design:
// The pipeline (package pipeline) runs the twelve file-based passes of
// §4 in order, each one committing its output atomically under
// --workdir so an interrupted or failing run can be resumed with
// --resume-from instead of starting over. Once every pass has
// committed, the final commit order is replayed through a sink.Sink
// that writes an SVN dump file, reconstructing each revision's content
// on demand from the ,v files under the configured CVS roots.
//
// Global data structures:
// * The pass-local stores under --workdir (see store.PassDir)
// * config.Config, loaded once from --config and shared read-only
//   across every pass and the final replay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/emicklei/dot"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/rcowham/cvs2svn-go/config"
	"github.com/rcowham/cvs2svn-go/dumpfile"
	"github.com/rcowham/cvs2svn-go/internal/version"
	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/pipeline"
	"github.com/rcowham/cvs2svn-go/rcs"
	"github.com/rcowham/cvs2svn-go/store"
)

func main() {
	var (
		configFile = kingpin.Flag(
			"config",
			"Config file for cvs2svn-go.",
		).Default("cvs2svn-go.yaml").Short('c').String()
		workDir = kingpin.Flag(
			"workdir",
			"Pipeline working directory holding each pass's committed output.",
		).Default(".cvs2svn-go").String()
		resumeFrom = kingpin.Flag(
			"resume-from",
			"Discard this pass and every later pass's output, then resume the run from it.",
		).String()
		dryRun = kingpin.Flag(
			"dry-run",
			"Run every synthesis pass but skip writing the dump file.",
		).Bool()
		maxChangesets = kingpin.Flag(
			"max-changesets",
			"Replay at most this many changesets from the final commit order (0 for no cap).",
		).Int()
		graph = kingpin.Flag(
			"graph",
			"Graphviz dot file to write the final changeset dependency graph to.",
		).String()
		outputDump = kingpin.Flag(
			"output",
			"SVN dump file to write (assuming --dry-run not specified).",
		).Default("cvs2svn-go.dump").Short('o').String()
		externalCO = kingpin.Flag(
			"external-co",
			"Reconstruct revision content by shelling out to RCS's co, instead of replaying deltas in-process.",
		).Bool()
		uuid = kingpin.Flag(
			"uuid",
			"UUID to stamp the dump file's repository header with (the UUID header is omitted if empty).",
		).String()
		debug = kingpin.Flag(
			"debug",
			"Enable debug-level logging.",
		).Bool()
	)
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version(version.Print("cvs2svn-go")).Author("cvs2svn-go")
	kingpin.CommandLine.Help = "Converts a CVS repository into an SVN dump file\n"
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	logger := logrus.New()
	logger.Level = logrus.InfoLevel
	if *debug {
		logger.Level = logrus.DebugLevel
	}

	cfg, err := config.LoadConfigFile(*configFile)
	if err != nil {
		logger.Errorf("error loading config file: %v", err)
		os.Exit(1)
	}

	startTime := time.Now()
	logger.Infof("%v", version.Print("cvs2svn-go"))
	logger.Infof("Starting %s, workdir: %s", startTime, *workDir)

	opts := pipeline.Options{
		Cfg:           cfg,
		Parser:        rcs.NewTextParser(logger),
		Logger:        logger,
		WorkDir:       *workDir,
		ResumeFrom:    *resumeFrom,
		DryRun:        *dryRun,
		MaxChangesets: *maxChangesets,
		UUID:          *uuid,
		ExternalCO:    *externalCO,
		Now:           startTime,
	}

	if !*dryRun {
		w := &dumpfile.Writer{}
		if err := w.CreateDumpFile(*outputDump); err != nil {
			logger.Errorf("error creating dump file %s: %v", *outputDump, err)
			os.Exit(1)
		}
		opts.DumpWriter = w
	}

	result, err := pipeline.Run(context.Background(), opts)
	if err != nil {
		logger.Errorf("conversion failed: %v", err)
		os.Exit(1)
	}

	if !*dryRun {
		logger.Infof("wrote %d changesets to %s", result.ChangesetsCommitted, *outputDump)
		for _, oc := range result.Openings {
			logger.Debugf("%+v", oc)
		}
	}

	if *graph != "" {
		if err := writeGraph(*workDir, *graph); err != nil {
			logger.Errorf("error writing graph file %s: %v", *graph, err)
			os.Exit(1)
		}
	}

	logger.Infof("Finished in %s", time.Since(startTime))
}

// writeGraph renders the final changeset dependency graph left behind
// by FinalTopologicalSort as a Graphviz dot file, the same rendering
// cmd/cvsgraph produces for a workdir on its own.
func writeGraph(workDir, output string) error {
	passDir := filepath.Join(workDir, "finaltoposort")

	csStore, err := store.OpenKeyedStore[*model.Changeset](filepath.Join(passDir, "changesets"))
	if err != nil {
		return err
	}
	defer csStore.Close()
	changesets, err := csStore.All()
	if err != nil {
		return err
	}

	symStore, err := store.OpenKeyedStore[*model.Symbol](filepath.Join(passDir, "symbols"))
	if err != nil {
		return err
	}
	defer symStore.Close()
	allSymbols, err := symStore.All()
	if err != nil {
		return err
	}
	symbols := make(map[model.ID]*model.Symbol, len(allSymbols))
	for _, s := range allSymbols {
		symbols[s.ID] = s
	}

	g := dot.NewGraph(dot.Directed)
	nodes := make(map[model.ID]dot.Node, len(changesets))
	byID := make(map[model.ID]*model.Changeset, len(changesets))
	for _, cs := range changesets {
		byID[cs.ID] = cs
		label := fmt.Sprintf("Changeset %d\nrevision (%d items)", cs.ID, len(cs.Items))
		if cs.Kind == model.ChangesetSymbol {
			name := fmt.Sprintf("symbol %d", cs.SymbolID)
			if sym, ok := symbols[cs.SymbolID]; ok {
				name = sym.Name
			}
			label = fmt.Sprintf("Changeset %d\n%s (%d items)", cs.ID, name, len(cs.Items))
		}
		nodes[cs.ID] = g.Node(label)
	}

	ids := make([]model.ID, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		deps := make([]model.ID, 0, len(byID[id].Dependencies))
		for dep := range byID[id].Dependencies {
			deps = append(deps, dep)
		}
		sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
		for _, dep := range deps {
			if other, ok := nodes[dep]; ok {
				g.Edge(other, nodes[id])
			}
		}
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte(g.String()))
	return err
}
