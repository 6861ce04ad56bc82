package passes

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rcowham/cvs2svn-go/config"
	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/store"
)

// SortOptions configures either Sort pass.
type SortOptions struct {
	Cfg     *config.Config
	WorkDir string
}

// field extracts the nth space-separated field of a stream line, or ""
// past the end (used by the Less comparators below, which only need to
// parse a prefix of each line).
func field(line string, n int) string {
	fields := strings.SplitN(line, " ", n+2)
	if n >= len(fields) {
		return ""
	}
	return fields[n]
}

func fieldInt(line string, n int) int64 {
	v, _ := strconv.ParseInt(field(line, n), 10, 64)
	return v
}

// lessRevisionLine orders "ITEMID METADATAID TIMESTAMP" lines by
// (metadata id, timestamp), grouping a single CVS commit's revisions
// together and placing commits in chronological order — the ordering
// InitializeChangesets (§4.6) needs to find metadata-change and
// timestamp-gap changeset boundaries.
func lessRevisionLine(a, b string) bool {
	ma, mb := fieldInt(a, 1), fieldInt(b, 1)
	if ma != mb {
		return ma < mb
	}
	return fieldInt(a, 2) < fieldInt(b, 2)
}

// lessSymbolLine orders "ITEMID SYMBOLID" lines by symbol id, grouping
// every branch/tag item of one symbol together for InitializeChangesets'
// per-symbol changeset grouping.
func lessSymbolLine(a, b string) bool {
	return fieldInt(a, 1) < fieldInt(b, 1)
}

// SortRevisions runs the bounded-memory external sort (§4.5, §9) over the
// revision stream FilterSymbols produced, ordering it by (metadata id,
// timestamp). The symbol stream and every keyed store are carried forward
// untouched.
func SortRevisionsPass(opts SortOptions) error {
	prev := filepath.Join(opts.WorkDir, FilterSymbols)
	dir, err := store.PassDir(opts.WorkDir, SortRevisions)
	if err != nil {
		return err
	}

	sortOpts := store.SortOptions{
		MemoryLimit: int64(opts.Cfg.SortMemoryLimit),
		Less:        lessRevisionLine,
	}
	if err := store.ExternalSort(
		filepath.Join(prev, "revisions.stream"),
		filepath.Join(dir, "revisions.stream"),
		SortRevisions,
		sortOpts,
	); err != nil {
		return err
	}

	if err := copyLineStream(filepath.Join(prev, "symbols.stream"), filepath.Join(dir, "symbols.stream"), SortRevisions); err != nil {
		return err
	}
	if err := passThroughFilterSymbolsStores(prev, dir, SortRevisions); err != nil {
		return err
	}
	return store.Commit(opts.WorkDir, SortRevisions)
}

// SortSymbols sorts the symbol stream by symbol id, completing §4.5. The
// already-sorted revision stream and every keyed store are carried
// forward untouched.
func SortSymbolsPass(opts SortOptions) error {
	prev := filepath.Join(opts.WorkDir, SortRevisions)
	dir, err := store.PassDir(opts.WorkDir, SortSymbols)
	if err != nil {
		return err
	}

	sortOpts := store.SortOptions{
		MemoryLimit: int64(opts.Cfg.SortMemoryLimit),
		Less:        lessSymbolLine,
	}
	if err := store.ExternalSort(
		filepath.Join(prev, "symbols.stream"),
		filepath.Join(dir, "symbols.stream"),
		SortSymbols,
		sortOpts,
	); err != nil {
		return err
	}

	if err := copyLineStream(filepath.Join(prev, "revisions.stream"), filepath.Join(dir, "revisions.stream"), SortSymbols); err != nil {
		return err
	}
	if err := passThroughFilterSymbolsStores(prev, dir, SortSymbols); err != nil {
		return err
	}
	return store.Commit(opts.WorkDir, SortSymbols)
}

// passThroughFilterSymbolsStores copies the five keyed stores that
// neither Sort pass touches.
func passThroughFilterSymbolsStores(prev, dir, pass string) error {
	if err := copyKeyedStore[*model.Item](filepath.Join(prev, "items"), filepath.Join(dir, "items"), pass); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.Project](filepath.Join(prev, "projects"), filepath.Join(dir, "projects"), pass); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.CVSPath](filepath.Join(prev, "paths"), filepath.Join(dir, "paths"), pass); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.Metadata](filepath.Join(prev, "metadata"), filepath.Join(dir, "metadata"), pass); err != nil {
		return err
	}
	return copyKeyedStore[*model.Symbol](filepath.Join(prev, "symbols"), filepath.Join(dir, "symbols"), pass)
}
