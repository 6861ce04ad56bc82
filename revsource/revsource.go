// Package revsource reconstructs the full text of one CVS revision on
// demand, so that passes before the sink never need to hold revision
// content in memory (§5's memory discipline) and the sink chooses when
// to pay the reconstruction cost.
package revsource

import (
	"context"

	"github.com/rcowham/cvs2svn-go/model"
)

// Reader reconstructs the full content of one revision of one file
// (§6). Both the in-process and external implementations below satisfy
// it, so callers are reader-agnostic.
type Reader interface {
	Reconstruct(ctx context.Context, fileID model.ID, revisionNumber string) ([]byte, error)
}

// FileLocator maps a CVSPath id to the ,v file's path in the archive.
// Both Reader implementations need one to turn a fileID into something
// they can open (or hand to `co`).
type FileLocator interface {
	PathFor(fileID model.ID) (string, error)
}

// FileLocatorFunc adapts a plain function to FileLocator.
type FileLocatorFunc func(model.ID) (string, error)

func (f FileLocatorFunc) PathFor(fileID model.ID) (string, error) { return f(fileID) }
