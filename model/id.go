// Package model holds the entities of the changeset synthesis pipeline:
// Projects, CVSPaths, Symbols, Metadata, Items (CVSRevision/CVSBranch/CVSTag)
// and Changesets. Every entity carries a stable integer identity allocated
// during Collect and preserved across all later passes.
package model

// ID is a stable, process-wide-unique identity for one entity. Zero is
// reserved as the "no such reference" sentinel (no predecessor, no parent
// line-of-development, no closing revision).
type ID int64

// NoID is the sentinel for an absent reference.
const NoID ID = 0

// IDGen hands out increasing, never-reused IDs. Not safe for concurrent
// use by itself: Collect protects it behind the single goroutine that owns
// the item store (see passes/collect.go).
type IDGen struct {
	next ID
}

// Next returns the next unused ID, starting at 1.
func (g *IDGen) Next() ID {
	g.next++
	return g.next
}

// Peek returns the highest ID handed out so far, without allocating a
// new one (0 if Next has never been called).
func (g *IDGen) Peek() ID {
	return g.next
}

// Restore resets the generator to resume handing out ids after high,
// for loading a generator's state back from store.LoadIDGen.
func (g *IDGen) Restore(high ID) {
	g.next = high
}
