package sink

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rcowham/cvs2svn-go/dumpfile"
	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/revsource"
)

// DumpSink is the concrete Sink that writes an SVN dump-format stream
// via dumpfile.Writer, reconstructing each revision's content on demand
// through a revsource.Reader (§6's "revision reader, called from the
// sink only").
type DumpSink struct {
	Writer        *dumpfile.Writer
	Reader        revsource.Reader
	Logger        *logrus.Logger
	KeepCVSIgnore bool

	revnum   int
	openings []OpeningClosing
}

// NewDumpSink returns a sink writing through w, reconstructing content
// through r.
func NewDumpSink(w *dumpfile.Writer, r revsource.Reader, logger *logrus.Logger) *DumpSink {
	if logger == nil {
		logger = logrus.New()
	}
	return &DumpSink{Writer: w, Reader: r, Logger: logger}
}

// Commit implements sink.Sink: it assigns the next SVN revision number,
// writes the revision record and one Node-path record per member, and
// records openings/closings for the final log (§6).
func (d *DumpSink) Commit(ctx context.Context, changesetID model.ID, commitTime time.Time, members []Member) error {
	d.revnum++
	revnum := d.revnum

	author, log := commitMetadata(members)
	if err := d.Writer.WriteRevision(revnum, author, log, commitTime); err != nil {
		return errors.Wrapf(err, "sink: writing revision %d for changeset %d", revnum, changesetID)
	}

	for _, m := range members {
		switch {
		case m.Revision != nil:
			if err := d.commitRevision(ctx, revnum, m.Revision); err != nil {
				return err
			}
		case m.Symbol != nil:
			if err := d.commitSymbol(revnum, m.Symbol); err != nil {
				return err
			}
		default:
			return fmt.Errorf("sink: changeset %d has a member with neither Revision nor Symbol set", changesetID)
		}
	}
	return nil
}

func (d *DumpSink) commitRevision(ctx context.Context, revnum int, m *RevisionMember) error {
	if !d.KeepCVSIgnore && isCVSIgnorePath(m.Path) {
		d.Logger.Debugf("sink: dropping %s (keep_cvsignore is false)", m.Path)
		return nil
	}

	node := dumpfile.Node{
		Path:   m.Path,
		Kind:   dumpfile.NodeFile,
		Action: m.Action,
	}

	var mimeType string
	if m.Action != dumpfile.ActionDelete {
		content, err := d.Reader.Reconstruct(ctx, m.FileID, m.RevisionNumber)
		if err != nil {
			return errors.Wrapf(err, "sink: reconstructing %s@%s", m.Path, m.RevisionNumber)
		}
		node.Content = content
		mimeType, _ = dumpfile.SniffMimeType(content, m.KeywordBinary)
	}

	if err := d.Writer.WriteNode(node, mimeType); err != nil {
		return errors.Wrapf(err, "sink: writing node %s", m.Path)
	}

	for _, use := range m.Opens {
		d.recordOpeningClosing(use.SymbolID, revnum, true, use.SymbolID)
	}
	for _, use := range m.Closes {
		d.recordOpeningClosing(use.SymbolID, revnum, false, use.SymbolID)
	}
	return nil
}

func (d *DumpSink) commitSymbol(revnum int, m *SymbolMember) error {
	node := dumpfile.Node{
		Path:         symbolRootPath(m),
		Kind:         dumpfile.NodeDir,
		Action:       dumpfile.ActionAdd,
		CopyFromPath: m.CopyFromPath,
		CopyFromRev:  m.CopyFromRev,
	}
	if err := d.Writer.WriteNode(node, ""); err != nil {
		return errors.Wrapf(err, "sink: writing symbol node %s", node.Path)
	}
	for _, sub := range m.SubPaths {
		subNode := dumpfile.Node{
			Path:         sub,
			Action:       dumpfile.ActionAdd,
			CopyFromPath: m.CopyFromPath,
			CopyFromRev:  m.CopyFromRev,
		}
		if err := d.Writer.WriteNode(subNode, ""); err != nil {
			return errors.Wrapf(err, "sink: writing symbol sub-path %s", sub)
		}
	}
	d.recordOpeningClosing(m.SymbolID, revnum, true, m.SymbolID)
	return nil
}

func symbolRootPath(m *SymbolMember) string {
	if m.Kind == model.ItemTag {
		return "tags/" + m.Name
	}
	return "branches/" + m.Name
}

func (d *DumpSink) recordOpeningClosing(symbolID model.ID, revnum int, opens bool, cvsSymbolID model.ID) {
	d.openings = append(d.openings, OpeningClosing{
		SymbolID:    symbolID,
		SVNRevision: revnum,
		Opens:       opens,
		CVSSymbolID: cvsSymbolID,
	})
}

// Openings returns the accumulated openings/closings log, sorted by
// symbol id and then by SVN revision number per §6.
func (d *DumpSink) Openings() []OpeningClosing {
	out := append([]OpeningClosing(nil), d.openings...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].SymbolID != out[j].SymbolID {
			return out[i].SymbolID < out[j].SymbolID
		}
		return out[i].SVNRevision < out[j].SVNRevision
	})
	return out
}

// commitMetadata picks the author/log for the revision record: the
// first revision member's, falling back to a synthesized message for
// changesets made only of symbol actions (branch/tag creation commits
// carry no CVS author/log of their own).
func commitMetadata(members []Member) (author, log string) {
	for _, m := range members {
		if m.Revision != nil {
			return m.Revision.Author, m.Revision.Log
		}
	}
	for _, m := range members {
		if m.Symbol != nil {
			action := "Creating"
			if m.Symbol.Kind == model.ItemTag {
				action = "Tagging"
			}
			return "cvs2svn", fmt.Sprintf("%s %s", action, m.Symbol.Name)
		}
	}
	return "cvs2svn", "synthesized commit"
}

func isCVSIgnorePath(path string) bool {
	return len(path) >= len(".cvsignore") && path[len(path)-len(".cvsignore"):] == ".cvsignore"
}
