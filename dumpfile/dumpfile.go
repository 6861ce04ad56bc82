// Package dumpfile writes an SVN dump-format stream: the sink's final
// output format (§6), grounded on the teacher's journal package (a
// thin struct wrapping io.Writer, one WriteX method per record family)
// generalized from Perforce's 2004.1 journal records to the dump
// format's Revision-number/Node-path/Node-kind/Node-action headers.
package dumpfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/h2non/filetype"
)

// NodeKind is a dump node's Node-kind header value.
type NodeKind string

const (
	NodeFile NodeKind = "file"
	NodeDir  NodeKind = "dir"
)

// NodeAction is a dump node's Node-action header value.
type NodeAction string

const (
	ActionAdd     NodeAction = "add"
	ActionChange  NodeAction = "change"
	ActionDelete  NodeAction = "delete"
	ActionReplace NodeAction = "replace"
)

// Property is one SVN versioned-property key/value pair, serialized in
// the dump format's "K len\nkey\nV len\nvalue\n" property-block shape.
type Property struct {
	Key   string
	Value string
}

// Node is one Node-path record: a file add/change/delete or a
// directory add, optionally a copy (CopyFromPath/CopyFromRev set) with
// or without new content.
type Node struct {
	Path         string
	Kind         NodeKind
	Action       NodeAction
	CopyFromPath string // empty unless this node originates as a copy
	CopyFromRev  int
	Properties   []Property
	Content      []byte // nil for a pure copy/delete with no content change
}

// Writer wraps an io.Writer with the dump format's header/revision/node
// record methods — the same "struct holds the io.Writer, one method per
// record kind" shape as the teacher's Journal, generalized to Subversion's
// record set instead of Perforce's.
type Writer struct {
	filename string
	w        io.Writer
}

// CreateDumpFile creates filename and directs subsequent writes there.
func (d *Writer) CreateDumpFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("dumpfile: creating %s: %w", filename, err)
	}
	d.filename = filename
	d.w = bufio.NewWriter(f)
	return nil
}

// SetWriter directs subsequent writes to w directly, bypassing
// CreateDumpFile — used by tests that want the records in a buffer
// instead of a file.
func (d *Writer) SetWriter(w io.Writer) {
	d.w = w
}

// WriteHeader writes the dump format's version preamble, once per dump.
func (d *Writer) WriteHeader(uuid string) error {
	if _, err := fmt.Fprintf(d.w, "SVN-fs-dump-format-version: 2\n\n"); err != nil {
		return fmt.Errorf("dumpfile: writing format header: %w", err)
	}
	if uuid != "" {
		if _, err := fmt.Fprintf(d.w, "UUID: %s\n\n", uuid); err != nil {
			return fmt.Errorf("dumpfile: writing UUID header: %w", err)
		}
	}
	return nil
}

// WriteRevision opens a new revision record with its standard
// properties (author, date, log message), matching the property-block
// shape every Node record below also uses.
func (d *Writer) WriteRevision(revnum int, author, log string, date time.Time) error {
	props := []Property{
		{"svn:author", author},
		{"svn:date", date.UTC().Format("2006-01-02T15:04:05.000000Z")},
		{"svn:log", log},
	}
	block := encodeProperties(props)
	if _, err := fmt.Fprintf(d.w, "Revision-number: %d\n", revnum); err != nil {
		return fmt.Errorf("dumpfile: writing revision header: %w", err)
	}
	if _, err := fmt.Fprintf(d.w, "Prop-content-length: %d\nContent-length: %d\n\n", len(block), len(block)); err != nil {
		return fmt.Errorf("dumpfile: writing revision length headers: %w", err)
	}
	if _, err := d.w.Write(block); err != nil {
		return fmt.Errorf("dumpfile: writing revision properties: %w", err)
	}
	if _, err := fmt.Fprint(d.w, "\n"); err != nil {
		return fmt.Errorf("dumpfile: writing revision trailer: %w", err)
	}
	return nil
}

// WriteNode writes one Node-path record. mimeType, when non-empty, is
// added as an svn:mime-type property alongside n.Properties; callers
// that don't know it (keep_cvsignore / kb handling happens one layer
// up) can leave it blank and rely on SniffMimeType.
func (d *Writer) WriteNode(n Node, mimeType string) error {
	props := n.Properties
	if mimeType != "" {
		props = append(append([]Property(nil), props...), Property{"svn:mime-type", mimeType})
	}
	propBlock := encodeProperties(props)

	if _, err := fmt.Fprintf(d.w, "Node-path: %s\n", n.Path); err != nil {
		return fmt.Errorf("dumpfile: writing node path: %w", err)
	}
	if n.Kind != "" {
		if _, err := fmt.Fprintf(d.w, "Node-kind: %s\n", n.Kind); err != nil {
			return fmt.Errorf("dumpfile: writing node kind: %w", err)
		}
	}
	if _, err := fmt.Fprintf(d.w, "Node-action: %s\n", n.Action); err != nil {
		return fmt.Errorf("dumpfile: writing node action: %w", err)
	}
	if n.CopyFromPath != "" {
		if _, err := fmt.Fprintf(d.w, "Node-copyfrom-rev: %d\nNode-copyfrom-path: %s\n", n.CopyFromRev, n.CopyFromPath); err != nil {
			return fmt.Errorf("dumpfile: writing node copyfrom headers: %w", err)
		}
	}

	hasProps := len(propBlock) > 0
	hasContent := n.Content != nil
	if hasProps {
		if _, err := fmt.Fprintf(d.w, "Prop-content-length: %d\n", len(propBlock)); err != nil {
			return fmt.Errorf("dumpfile: writing node prop-length: %w", err)
		}
	}
	if hasContent {
		if _, err := fmt.Fprintf(d.w, "Text-content-length: %d\n", len(n.Content)); err != nil {
			return fmt.Errorf("dumpfile: writing node text-length: %w", err)
		}
	}
	total := len(propBlock) + len(n.Content)
	if hasProps || hasContent {
		if _, err := fmt.Fprintf(d.w, "Content-length: %d\n", total); err != nil {
			return fmt.Errorf("dumpfile: writing node content-length: %w", err)
		}
	}
	if _, err := fmt.Fprint(d.w, "\n"); err != nil {
		return fmt.Errorf("dumpfile: writing node header trailer: %w", err)
	}
	if hasProps {
		if _, err := d.w.Write(propBlock); err != nil {
			return fmt.Errorf("dumpfile: writing node properties: %w", err)
		}
	}
	if hasContent {
		if _, err := d.w.Write(n.Content); err != nil {
			return fmt.Errorf("dumpfile: writing node content: %w", err)
		}
	}
	if _, err := fmt.Fprint(d.w, "\n\n"); err != nil {
		return fmt.Errorf("dumpfile: writing node trailer: %w", err)
	}
	return nil
}

// Flush flushes any buffering Writer introduced in CreateDumpFile.
func (d *Writer) Flush() error {
	if bw, ok := d.w.(*bufio.Writer); ok {
		return bw.Flush()
	}
	return nil
}

// encodeProperties renders SVN's "K len\nkey\nV len\nvalue\n"...
// "PROPS-END\n" property block.
func encodeProperties(props []Property) []byte {
	if len(props) == 0 {
		return nil
	}
	var buf []byte
	for _, p := range props {
		buf = append(buf, []byte(fmt.Sprintf("K %d\n%s\n", len(p.Key), p.Key))...)
		buf = append(buf, []byte(fmt.Sprintf("V %d\n%s\n", len(p.Value), p.Value))...)
	}
	buf = append(buf, []byte("PROPS-END\n")...)
	return buf
}

// SniffMimeType defaults svn:mime-type from content when CVS's -kb flag
// is silent or contradicts the bytes — the same sniff-before-trust
// discipline the teacher applies in GitBlob.setCompressionDetails before
// picking a journal file type, generalized from "compressed or not" to
// an actual MIME type.
func SniffMimeType(content []byte, cvsBinaryFlag bool) (mimeType string, binary bool) {
	kind, err := filetype.Match(content)
	if err == nil && kind != filetype.Unknown {
		return kind.MIME.Value, true
	}
	if cvsBinaryFlag {
		return "application/octet-stream", true
	}
	return "", false
}
