package model

import "time"

// ChangesetKind distinguishes the two changeset families. A RevisionChangeset
// holds only ItemRevision members; a SymbolChangeset holds only ItemBranch
// or ItemTag members for a single Symbol (§3).
type ChangesetKind int

const (
	ChangesetRevision ChangesetKind = iota
	ChangesetSymbol
)

// Changeset is a set of items intended to commit atomically. Both
// RevisionChangeset and SymbolChangeset (§3) share this representation;
// Kind and SymbolID (NoID for revision changesets) distinguish them.
type Changeset struct {
	ID       ID
	Kind     ChangesetKind
	SymbolID ID // NoID for ChangesetRevision

	Items []ID // member item ids, in file-stable order

	// Dependencies lists the ids of other changesets this one depends on.
	// Populated from the items' Predecessor/DependentBranchCommits edges,
	// resolved through the item→changeset map, with self-references
	// removed (the "no internal dependency" invariant, §3/§8 property 5).
	Dependencies map[ID]bool

	// Ordered is set once RevisionTopologicalSort (§4.8) has frozen this
	// changeset's position; Predecessor/Successor then name its immediate
	// neighbors in commit order. Later passes add the Predecessor link as
	// an edge on top of the edges they still build from Dependencies.
	Ordered     bool
	Predecessor ID
	Successor   ID

	// CommitTime is assigned by FinalTopologicalSort (§4.11); zero until
	// then.
	CommitTime time.Time
}

// NewRevisionChangeset returns an empty draft revision changeset.
func NewRevisionChangeset(id ID) *Changeset {
	return &Changeset{ID: id, Kind: ChangesetRevision, Dependencies: make(map[ID]bool)}
}

// NewSymbolChangeset returns an empty draft symbol changeset for symbolID.
func NewSymbolChangeset(id, symbolID ID) *Changeset {
	return &Changeset{ID: id, Kind: ChangesetSymbol, SymbolID: symbolID, Dependencies: make(map[ID]bool)}
}

// AddDependency records that this changeset depends on other, unless
// other is this changeset itself (self-dependencies are dropped rather
// than recorded: they would otherwise violate the acyclicity invariant
// trivially and are meaningless once items have been partitioned so that
// no two interdependent items share a changeset, §3).
func (c *Changeset) AddDependency(other ID) {
	if other == c.ID || other == NoID {
		return
	}
	c.Dependencies[other] = true
}

// GetID implements store.Record.
func (c *Changeset) GetID() ID { return c.ID }
