package passes

import (
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/rcowham/cvs2svn-go/config"
	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/store"
)

// CleanMetadataOptions configures the CleanMetadata pass.
type CleanMetadataOptions struct {
	Cfg     *config.Config
	WorkDir string
}

// CleanMetadata re-encodes every interned Metadata record's author and log
// text as valid UTF-8 (§4.2), trying each of Cfg.Encodings in turn. RCS log
// text is whatever 8-bit encoding the committer's terminal happened to use
// at commit time, and none of the pack's third-party dependencies (nor the
// teacher's) reach further into text-encoding territory than the standard
// library already does for the one fallback that actually matters here:
// Latin-1 (ISO-8859-1), whose 256 code points map 1:1 onto the first 256
// Unicode code points, so decoding it needs no table or external package.
// That is why this one pass is built on unicode/utf8 plus a hand-rolled
// decoder rather than an imported charmap library.
func CleanMetadataPass(opts CleanMetadataOptions) error {
	dir, err := store.PassDir(opts.WorkDir, CleanMetadata)
	if err != nil {
		return err
	}
	prev := filepath.Join(opts.WorkDir, Collect)

	if err := copyKeyedStore[*model.Item](filepath.Join(prev, "items"), filepath.Join(dir, "items"), CleanMetadata); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.Project](filepath.Join(prev, "projects"), filepath.Join(dir, "projects"), CleanMetadata); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.CVSPath](filepath.Join(prev, "paths"), filepath.Join(dir, "paths"), CleanMetadata); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.Symbol](filepath.Join(prev, "symbols"), filepath.Join(dir, "symbols"), CleanMetadata); err != nil {
		return err
	}
	if err := copyKeyedStore[*model.SymbolStats](filepath.Join(prev, "symbolstats"), filepath.Join(dir, "symbolstats"), CleanMetadata); err != nil {
		return err
	}

	r, err := store.OpenKeyedStore[*model.Metadata](filepath.Join(prev, "metadata"))
	if err != nil {
		return err
	}
	all, err := r.All()
	r.Close()
	if err != nil {
		return err
	}

	w, err := store.CreateKeyedStore[*model.Metadata](filepath.Join(dir, "metadata"), CleanMetadata)
	if err != nil {
		return err
	}
	for _, m := range all {
		author, err := cleanText(m.Author, opts.Cfg.Encodings)
		if err != nil {
			w.Close()
			return errors.Wrapf(&model.EncodingError{MetadataID: m.ID}, "cleanmetadata: author text")
		}
		log, err := cleanText(m.Log, opts.Cfg.Encodings)
		if err != nil {
			w.Close()
			return errors.Wrapf(&model.EncodingError{MetadataID: m.ID}, "cleanmetadata: log text")
		}
		m.Author, m.Log = author, log
		if err := w.Write(m); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	return store.Commit(opts.WorkDir, CleanMetadata)
}

// cleanText returns s re-encoded as valid UTF-8 by trying each candidate
// encoding in order, or an error if none of them accept it.
func cleanText(s string, encodings []string) (string, error) {
	if utf8.ValidString(s) {
		return s, nil
	}
	for _, enc := range encodings {
		switch enc {
		case "utf-8", "utf8":
			if utf8.ValidString(s) {
				return s, nil
			}
		case "latin-1", "latin1", "iso-8859-1":
			return decodeLatin1(s), nil
		}
	}
	return "", fmt.Errorf("no configured encoding decodes this text")
}

// decodeLatin1 reinterprets s's bytes as Latin-1 code points.
func decodeLatin1(s string) string {
	runes := make([]rune, len(s))
	for i := 0; i < len(s); i++ {
		runes[i] = rune(s[i])
	}
	return string(runes)
}
