package main

// cvsgraph renders the changeset dependency graph that FinalTopologicalSort
// left behind as a Graphviz dot file, adapted from the teacher's gitgraph
// tool to changesets and symbols instead of git commits and branches.

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/emicklei/dot"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/rcowham/cvs2svn-go/internal/version"
	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/store"
)

func loadChangesets(path string) ([]*model.Changeset, error) {
	r, err := store.OpenKeyedStore[*model.Changeset](path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.All()
}

func loadSymbols(path string) (map[model.ID]*model.Symbol, error) {
	r, err := store.OpenKeyedStore[*model.Symbol](path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	all, err := r.All()
	if err != nil {
		return nil, err
	}
	out := make(map[model.ID]*model.Symbol, len(all))
	for _, s := range all {
		out[s.ID] = s
	}
	return out, nil
}

func nodeLabel(cs *model.Changeset, symbols map[model.ID]*model.Symbol) string {
	if cs.Kind == model.ChangesetSymbol {
		name := fmt.Sprintf("symbol %d", cs.SymbolID)
		if sym, ok := symbols[cs.SymbolID]; ok {
			name = sym.Name
		}
		return fmt.Sprintf("Changeset %d\n%s (%d items)", cs.ID, name, len(cs.Items))
	}
	return fmt.Sprintf("Changeset %d\nrevision (%d items)", cs.ID, len(cs.Items))
}

func buildDot(changesets []*model.Changeset, symbols map[model.ID]*model.Symbol) *dot.Graph {
	g := dot.NewGraph(dot.Directed)
	nodes := make(map[model.ID]dot.Node, len(changesets))
	byID := make(map[model.ID]*model.Changeset, len(changesets))
	for _, cs := range changesets {
		byID[cs.ID] = cs
		nodes[cs.ID] = g.Node(nodeLabel(cs, symbols))
	}

	ids := make([]model.ID, 0, len(changesets))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		cs := byID[id]
		deps := make([]model.ID, 0, len(cs.Dependencies))
		for dep := range cs.Dependencies {
			deps = append(deps, dep)
		}
		sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
		for _, dep := range deps {
			if other, ok := nodes[dep]; ok {
				g.Edge(other, nodes[id])
			}
		}
	}
	return g
}

func main() {
	var (
		workDir = kingpin.Arg(
			"workdir",
			"Pipeline working directory (containing the finaltoposort/ pass output).",
		).Required().String()
		output = kingpin.Flag(
			"output",
			"Graphviz dot file to write the changeset graph to.",
		).Short('o').Default("changesets.dot").String()
	)
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version(version.Print("cvsgraph")).Author("cvs2svn-go")
	kingpin.CommandLine.Help = "Renders the changeset dependency graph from a cvs2svn-go pipeline run as a Graphviz dot file\n"
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	passDir := filepath.Join(*workDir, "finaltoposort")
	changesets, err := loadChangesets(filepath.Join(passDir, "changesets"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "cvsgraph: loading changesets: %v\n", err)
		os.Exit(1)
	}
	symbols, err := loadSymbols(filepath.Join(passDir, "symbols"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "cvsgraph: loading symbols: %v\n", err)
		os.Exit(1)
	}

	g := buildDot(changesets, symbols)

	f, err := os.OpenFile(*output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cvsgraph: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	if _, err := f.Write([]byte(g.String())); err != nil {
		fmt.Fprintf(os.Stderr, "cvsgraph: writing %s: %v\n", *output, err)
		os.Exit(1)
	}
}
