// Package passes implements the twelve file-based, pass-sequential
// passes of the changeset synthesis pipeline (§4, §5): each pass reads
// the intermediate files the previous one committed under a working
// directory, writes its own output to a temporary directory, and is
// published atomically by pipeline.Run via store.Commit.
package passes

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rcowham/cvs2svn-go/store"
)

// Names of the twelve passes, in pipeline order. These double as the
// store.PassDir/Commit/Done directory names and as the magic-header pass
// name stamped into every intermediate file this package writes.
const (
	Collect                 = "collect"
	CleanMetadata           = "cleanmetadata"
	CollateSymbols          = "collatesymbols"
	FilterSymbols           = "filtersymbols"
	SortRevisions           = "sortrevisions"
	SortSymbols             = "sortsymbols"
	InitializeChangesets    = "initializechangesets"
	BreakRevisionCycles     = "breakrevisioncycles"
	RevisionTopologicalSort = "revisiontoposort"
	BreakSymbolCycles       = "breaksymbolcycles"
	BreakAllCycles          = "breakallcycles"
	FinalTopologicalSort    = "finaltoposort"
)

// Order lists every pass name in the sequence pipeline.Run drives them.
var Order = []string{
	Collect,
	CleanMetadata,
	CollateSymbols,
	FilterSymbols,
	SortRevisions,
	SortSymbols,
	InitializeChangesets,
	BreakRevisionCycles,
	RevisionTopologicalSort,
	BreakSymbolCycles,
	BreakAllCycles,
	FinalTopologicalSort,
}

// revComponents splits a CVS revision or branch number ("1.2.4.1") into
// its dot-separated integer parts.
func revComponents(rev string) []int {
	parts := strings.Split(rev, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil
		}
		out[i] = n
	}
	return out
}

// revDepth returns the number of dot-separated components. Trunk
// revisions always have depth 2; branch revisions have an even depth
// of 4 or more.
func revDepth(rev string) int {
	if rev == "" {
		return 0
	}
	return len(revComponents(rev))
}

// onTrunk reports whether rev names a trunk revision (depth 2).
func onTrunk(rev string) bool {
	return revDepth(rev) == 2
}

// branchNumberOf returns the branch number that rev (a revision on some
// branch) lives on, e.g. "1.2.4.1" -> "1.2.4".
func branchNumberOf(rev string) string {
	i := strings.LastIndex(rev, ".")
	if i < 0 {
		return ""
	}
	return rev[:i]
}

// stripMagicBranchZero normalizes a symbol's recorded revision number
// from RCS's "magic branch" admin-section form (second-to-last
// component is a literal 0, e.g. "1.2.0.4") to the real branch number
// that form denotes ("1.2.4"). Revision numbers that are not in magic
// form (plain branch numbers, or tags pointing at an ordinary revision)
// pass through unchanged.
func stripMagicBranchZero(rev string) string {
	parts := strings.Split(rev, ".")
	if len(parts) >= 4 && parts[len(parts)-2] == "0" {
		out := append(append([]string{}, parts[:len(parts)-2]...), parts[len(parts)-1])
		return strings.Join(out, ".")
	}
	return rev
}

// walkRCSFiles calls fn with the path of every RCS ,v file found under
// root (including an Attic/ subdirectory, where CVS parks dead files).
func walkRCSFiles(root string, fn func(path string) error) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ",v") {
			return nil
		}
		return fn(path)
	})
}

// copyKeyedStore re-reads every record of a keyed store a pass does not
// modify and rewrites it under the new pass's directory, re-stamping the
// magic header. Every pass only ever reads from the immediately preceding
// pass's directory (§5), so a store a pass leaves untouched must still be
// carried forward or a later pass would have nowhere to find it.
func copyKeyedStore[T store.Record](srcPath, dstPath, pass string) error {
	r, err := store.OpenKeyedStore[T](srcPath)
	if err != nil {
		return err
	}
	defer r.Close()
	all, err := r.All()
	if err != nil {
		return err
	}
	w, err := store.CreateKeyedStore[T](dstPath, pass)
	if err != nil {
		return err
	}
	for _, rec := range all {
		if err := w.Write(rec); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// copyLineStream carries a line stream forward unchanged, the line-stream
// counterpart of copyKeyedStore.
func copyLineStream(srcPath, dstPath, pass string) error {
	r, err := store.OpenLineStream(srcPath)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := store.CreateLineStream(dstPath, pass)
	if err != nil {
		return err
	}
	for {
		line, err := r.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			w.Close()
			return err
		}
		if err := w.WriteLine(line); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// cvsPathFor derives the project-relative, slash-separated path (with
// the ",v" suffix and any "Attic/" path component stripped) that a ,v
// file's content should be known as within its project.
func cvsPathFor(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = strings.TrimSuffix(rel, ",v")
	rel = filepath.ToSlash(rel)
	parts := strings.Split(rel, "/")
	out := parts[:0]
	for _, p := range parts {
		if p == "Attic" {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, "/")
}
