// Package sink defines the pipeline's output boundary (§6): one Commit
// call per changeset, in the commit order FinalTopologicalSort (§4.11)
// produced, carrying everything a concrete sink needs to emit that
// changeset without consulting any other pass's intermediate files.
package sink

import (
	"context"
	"time"

	"github.com/rcowham/cvs2svn-go/dumpfile"
	"github.com/rcowham/cvs2svn-go/model"
)

// Sink receives changesets in commit order.
type Sink interface {
	Commit(ctx context.Context, changesetID model.ID, commitTime time.Time, members []Member) error
}

// Member is a tagged union: exactly one of Revision or Symbol is set,
// matching the outputs section of §6 ("each member is either a revision
// ... or a symbol action").
type Member struct {
	Revision *RevisionMember
	Symbol   *SymbolMember
}

// RevisionMember is one file's content change within a changeset.
type RevisionMember struct {
	FileID         model.ID
	Path           string // SVN-side path, already resolved by the pass producing this member
	RevisionNumber string // CVS revision number, for Reconstruct and for diagnostics
	Action         dumpfile.NodeAction
	KeywordBinary  bool // CVS -kb: defaults svn:mime-type/binary-ness when content sniffing is inconclusive
	Author         string
	Log            string

	// Opens/Closes mirror model.Item's bookkeeping (§4.4 step 4), carried
	// through so the sink can emit the openings/closings log (§6) without
	// re-deriving it from the item store.
	Opens  []model.SymbolUse
	Closes []model.SymbolUse
}

// SymbolMember is one symbol's action (branch/tag creation, or a later
// commit point for a symbol split across several SymbolChangesets,
// §4.9) within a changeset.
type SymbolMember struct {
	SymbolID     model.ID
	Kind         model.ItemKind // ItemBranch or ItemTag
	Name         string
	CopyFromPath string // trunk or another branch's path, taken by the pipeline from the line of development of the symbol item's predecessor revision
	CopyFromRev  int    // the already-assigned SVN revision number of the copy source
	SubPaths     []string
}

// OpeningClosing is one line of the symbol openings/closings log (§6):
// "SYMBOL_ID SVN_REVNUM TYPE CVS_SYMBOL_ID", TYPE in {O, C}.
type OpeningClosing struct {
	SymbolID    model.ID
	SVNRevision int
	Opens       bool
	CVSSymbolID model.ID
}
