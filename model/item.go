package model

import "time"

// ItemKind distinguishes the three kinds of item sharing the item-id
// space (§9 design note: "polymorphic item set" — represented as a
// tagged variant rather than an interface hierarchy, because the store
// needs one line-oriented codec for all three).
type ItemKind int

const (
	ItemRevision ItemKind = iota
	ItemBranch
	ItemTag
)

func (k ItemKind) String() string {
	switch k {
	case ItemRevision:
		return "Revision"
	case ItemBranch:
		return "Branch"
	case ItemTag:
		return "Tag"
	default:
		return "Unknown"
	}
}

// SymbolUse records a symbol this CVSRevision opens or closes (§4.4 step 4).
type SymbolUse struct {
	SymbolID ID
	Opens    bool // false means it closes
}

// Item is one CVSRevision, CVSBranch or CVSTag. Kind-specific fields are
// zero-valued when not applicable to the item's Kind.
type Item struct {
	ID        ID
	Kind      ItemKind
	FileID    ID // CVSPath id
	ProjectID ID

	// LineOfDevelopment is the symbol id the item lives on, or NoID for
	// trunk. For ItemBranch/ItemTag this is the symbol the item creates,
	// *not* the LOD it is filed under (every branch/tag creation is filed
	// under the LOD it sprouts from, held in Predecessor).
	LineOfDevelopment ID

	// SymbolID is the symbol this item concerns — itself, for
	// ItemBranch/ItemTag; NoID for ItemRevision.
	SymbolID ID

	// Predecessor is the item this one causally depends on:
	//   - ItemRevision: the previous revision on the same LOD (NoID for
	//     the first revision of a LOD).
	//   - ItemBranch/ItemTag: the source CVSRevision this symbol was cut
	//     from (always set; a branch/tag must have a base revision).
	Predecessor ID

	// DependentBranchCommits holds, for ItemBranch only, the ids of every
	// CVSRevision that commits directly on this branch and therefore
	// depends on this branch having been created first (§3).
	DependentBranchCommits []ID

	MetadataID ID
	Timestamp  time.Time // untrusted, as received from the RCS parser (§6)

	RevisionNumber string // CVS revision number, e.g. "1.2.4.1"

	// Opens/Closes are populated by FilterSymbols (§4.4 step 4) for
	// ItemRevision only.
	Opens  []SymbolUse
	Closes []SymbolUse

	// Deleted marks a revision whose CVS state is "dead" (placeholder);
	// surviving to this point only if Collect's normalization rules
	// needed to keep it (most dead revisions are dropped in Collect).
	Deleted bool
}

// DependsOn reports whether this item has a causal (intra-file) edge to
// other, per the four edge kinds named in spec.md §1:
// revision→predecessor, branch-creation→base, tag-creation→base,
// branch-commit→branch-creation. The last of these is captured by
// DependentBranchCommits on the branch item rather than here; this method
// covers the direct Predecessor edge, which is the one that matters for
// within-changeset dependency checks (§3 invariant, §8 property 5).
func (it *Item) DependsOn(other ID) bool {
	return it.Predecessor != NoID && it.Predecessor == other
}

// GetID implements store.Record.
func (it *Item) GetID() ID { return it.ID }
