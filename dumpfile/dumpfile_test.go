package dumpfile

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteHeaderAndRevision(t *testing.T) {
	var buf bytes.Buffer
	var w Writer
	w.SetWriter(&buf)

	require.NoError(t, w.WriteHeader("1234-uuid"))
	require.NoError(t, w.WriteRevision(1, "alice", "initial import",
		time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)))

	out := buf.String()
	assert.Contains(t, out, "SVN-fs-dump-format-version: 2")
	assert.Contains(t, out, "UUID: 1234-uuid")
	assert.Contains(t, out, "Revision-number: 1")
	assert.Contains(t, out, "K 10\nsvn:author\nV 5\nalice\n")
	assert.Contains(t, out, "PROPS-END\n")
}

func TestWriteNodeFileAdd(t *testing.T) {
	var buf bytes.Buffer
	var w Writer
	w.SetWriter(&buf)

	err := w.WriteNode(Node{
		Path:    "trunk/src/file.txt",
		Kind:    NodeFile,
		Action:  ActionAdd,
		Content: []byte("hello\n"),
	}, "text/plain")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Node-path: trunk/src/file.txt")
	assert.Contains(t, out, "Node-kind: file")
	assert.Contains(t, out, "Node-action: add")
	assert.Contains(t, out, "Text-content-length: 6")
	assert.True(t, strings.HasSuffix(out, "hello\n\n\n"))
}

func TestWriteNodeCopy(t *testing.T) {
	var buf bytes.Buffer
	var w Writer
	w.SetWriter(&buf)

	err := w.WriteNode(Node{
		Path:         "branches/REL1_0",
		Kind:         NodeDir,
		Action:       ActionAdd,
		CopyFromPath: "trunk",
		CopyFromRev:  4,
	}, "")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Node-copyfrom-rev: 4")
	assert.Contains(t, out, "Node-copyfrom-path: trunk")
	assert.NotContains(t, out, "Content-length:")
}

func TestSniffMimeTypeFallsBackToCVSFlag(t *testing.T) {
	mime, binary := SniffMimeType([]byte("plain text content"), false)
	assert.Equal(t, "", mime)
	assert.False(t, binary)

	mime, binary = SniffMimeType([]byte("plain text content"), true)
	assert.Equal(t, "application/octet-stream", mime)
	assert.True(t, binary)
}
