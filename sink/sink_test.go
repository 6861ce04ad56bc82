package sink

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcowham/cvs2svn-go/dumpfile"
	"github.com/rcowham/cvs2svn-go/model"
)

type fakeReader struct {
	content map[string][]byte
}

func (f *fakeReader) Reconstruct(ctx context.Context, fileID model.ID, revisionNumber string) ([]byte, error) {
	return f.content[revisionNumber], nil
}

func TestDumpSinkCommitsRevisionMember(t *testing.T) {
	var buf bytes.Buffer
	var w dumpfile.Writer
	w.SetWriter(&buf)

	reader := &fakeReader{content: map[string][]byte{"1.1": []byte("hello\n")}}
	s := NewDumpSink(&w, reader, nil)

	err := s.Commit(context.Background(), 42, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), []Member{
		{Revision: &RevisionMember{
			FileID:         1,
			Path:           "trunk/file.txt",
			RevisionNumber: "1.1",
			Action:         dumpfile.ActionAdd,
			Author:         "alice",
			Log:            "initial import",
		}},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Revision-number: 1")
	assert.Contains(t, out, "Node-path: trunk/file.txt")
	assert.Contains(t, out, "hello\n")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "initial import")
}

func TestDumpSinkCommitsSymbolMemberAsCopy(t *testing.T) {
	var buf bytes.Buffer
	var w dumpfile.Writer
	w.SetWriter(&buf)

	s := NewDumpSink(&w, &fakeReader{}, nil)

	require.NoError(t, s.Commit(context.Background(), 1, time.Now().UTC(), []Member{
		{Revision: &RevisionMember{FileID: 1, Path: "trunk/file.txt", RevisionNumber: "1.1", Action: dumpfile.ActionAdd, Author: "a", Log: "l"}},
	}))
	require.NoError(t, s.Commit(context.Background(), 2, time.Now().UTC(), []Member{
		{Symbol: &SymbolMember{
			SymbolID:     7,
			Kind:         model.ItemBranch,
			Name:         "REL1_0",
			CopyFromPath: "trunk",
			CopyFromRev:  1,
		}},
	}))

	out := buf.String()
	assert.Contains(t, out, "Node-path: branches/REL1_0")
	assert.Contains(t, out, "Node-copyfrom-rev: 1")
	assert.Contains(t, out, "Node-copyfrom-path: trunk")

	openings := s.Openings()
	require.Len(t, openings, 1)
	assert.Equal(t, model.ID(7), openings[0].SymbolID)
	assert.Equal(t, 2, openings[0].SVNRevision)
	assert.True(t, openings[0].Opens)
}

func TestDumpSinkSkipsCVSIgnoreByDefault(t *testing.T) {
	var buf bytes.Buffer
	var w dumpfile.Writer
	w.SetWriter(&buf)
	s := NewDumpSink(&w, &fakeReader{content: map[string][]byte{"1.1": []byte("ignore me\n")}}, nil)

	require.NoError(t, s.Commit(context.Background(), 1, time.Now().UTC(), []Member{
		{Revision: &RevisionMember{FileID: 1, Path: "trunk/.cvsignore", RevisionNumber: "1.1", Action: dumpfile.ActionAdd, Author: "a", Log: "l"}},
	}))

	assert.NotContains(t, buf.String(), "Node-path:")
}
