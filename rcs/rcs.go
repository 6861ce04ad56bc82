// Package rcs parses RCS ,v files (the on-disk format of a CVS archive)
// and drives a Sink with their admin section, delta headers and delta
// text in file order (§6).
package rcs

import "time"

// Sink receives the pieces of one ,v file as Parser encounters them, in
// file order: every DefineSymbol and DefineRevision call happens before
// any SetRevisionInfo call, mirroring the RCS file's own admin-section/
// delta-header/delta-text layout (§6).
type Sink interface {
	DefineSymbol(name string, revisionNumber string)
	DefineRevision(number string, date time.Time, author, state string, branches []string, next string)
	SetRevisionInfo(number string, log string, textOrDelta []byte)
}

// Parser parses one ,v file, driving sink with its contents.
type Parser interface {
	Parse(path string, sink Sink) error
}
