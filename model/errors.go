package model

import "fmt"

// The error taxonomy of §7. Each type implements error directly; callers
// that need to distinguish kinds use errors.As. Passes wrap these with
// github.com/pkg/errors (errors.Wrapf) to attach a stack trace at the
// point the pass aborts.

// CollectError is a structural, file-level failure during Collect: a
// malformed RCS file or an unparseable revision. Recoverable — Collect
// logs it and skips the file, the pass still completes (§7).
type CollectError struct {
	File string
	Err  error
}

func (e *CollectError) Error() string {
	return fmt.Sprintf("collect %s: %v", e.File, e.Err)
}

func (e *CollectError) Unwrap() error { return e.Err }

// SymbolPolicyError reports a symbol requested excluded while a live
// blocker sprouted from it (§4.3, §7, boundary scenario S4). Aborts
// CollateSymbols before any downstream data is written.
type SymbolPolicyError struct {
	Symbol   ID
	Blockers []ID
}

func (e *SymbolPolicyError) Error() string {
	return fmt.Sprintf("symbol %d cannot be excluded: live blockers %v", e.Symbol, e.Blockers)
}

// EncodingError reports metadata text that could not be encoded in any
// configured candidate encoding (§4.2, §7). Aborts CleanMetadata.
type EncodingError struct {
	MetadataID ID
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("metadata %d: un-encodable in any configured encoding", e.MetadataID)
}

// UnbreakableCycleError reports a cycle that the splitting heuristic could
// not reduce (§4.7/§4.9/§4.10, §7). Indicates a programmer error or an
// archive pathology; never silently worked around.
type UnbreakableCycleError struct {
	Changesets []ID
}

func (e *UnbreakableCycleError) Error() string {
	return fmt.Sprintf("cycle could not be broken: changesets %v", e.Changesets)
}

// IntegrityError reports an internal invariant violation: an item
// referencing an unknown id, or changeset membership disagreeing with the
// item→changeset map (§7). Aborts the pass; these are bugs, not
// user-facing input problems.
type IntegrityError struct {
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation: %s", e.Detail)
}
