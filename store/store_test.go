package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcowham/cvs2svn-go/model"
)

func TestLineStreamRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "revisions")

	w, err := CreateLineStream(path, "cleanmetadata")
	require.NoError(t, err)
	require.NoError(t, w.WriteFields("7", "1000", EncodeField("1.2.4.1")))
	require.NoError(t, w.WriteFields("8", "1001", EncodeField("1.3")))
	require.NoError(t, w.Close())

	r, err := OpenLineStream(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "cleanmetadata", r.Pass)

	fields, err := r.ReadFields()
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "1000", EncodeField("1.2.4.1")}, fields)
	rev, err := DecodeField(fields[2])
	require.NoError(t, err)
	assert.Equal(t, "1.2.4.1", rev)

	fields, err = r.ReadFields()
	require.NoError(t, err)
	assert.Equal(t, "8", fields[0])

	_, err = r.ReadLine()
	assert.Error(t, err)
}

func TestKeyedStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items")

	w, err := CreateKeyedStore[*model.Item](path, "initializechangesets")
	require.NoError(t, err)
	require.NoError(t, w.Write(&model.Item{ID: 1, Kind: model.ItemRevision, RevisionNumber: "1.1"}))
	require.NoError(t, w.Write(&model.Item{ID: 2, Kind: model.ItemRevision, RevisionNumber: "1.2"}))
	require.NoError(t, w.Write(&model.Item{ID: 5, Kind: model.ItemBranch, RevisionNumber: ""}))
	require.NoError(t, w.Close())

	r, err := OpenKeyedStore[*model.Item](path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "initializechangesets", r.Pass)
	assert.Equal(t, []model.ID{1, 2, 5}, r.IDs())

	item, ok, err := r.Get(2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1.2", item.RevisionNumber)

	_, ok, err = r.Get(99)
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := r.All()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.ItemBranch, all[2].Kind)
}

func TestKeyedStoreRejectsDuplicateID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dup")

	w, err := CreateKeyedStore[*model.Item](path, "collect")
	require.NoError(t, err)
	require.NoError(t, w.Write(&model.Item{ID: 1}))
	assert.Error(t, w.Write(&model.Item{ID: 1}))
	require.NoError(t, w.Close())
}

func TestExternalSort(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "unsorted")
	dst := filepath.Join(dir, "sorted")

	w, err := CreateLineStream(src, "collatesymbols")
	require.NoError(t, err)
	require.NoError(t, w.WriteFields("3", "c"))
	require.NoError(t, w.WriteFields("1", "a"))
	require.NoError(t, w.WriteFields("2", "b"))
	require.NoError(t, w.WriteFields("1", "aa"))
	require.NoError(t, w.Close())

	err = ExternalSort(src, dst, "sortstreams", SortOptions{
		MemoryLimit: 8, // force multiple runs across these tiny lines
		Less:        func(a, b string) bool { return a < b },
	})
	require.NoError(t, err)

	r, err := OpenLineStream(dst)
	require.NoError(t, err)
	defer r.Close()
	var lines []string
	for {
		line, err := r.ReadLine()
		if err != nil {
			break
		}
		lines = append(lines, line)
	}
	assert.Equal(t, []string{"1 a", "1 aa", "2 b", "3 c"}, lines)
}

func TestPassBoundaryCommitAndResume(t *testing.T) {
	dir := t.TempDir()

	tmp, err := PassDir(dir, "collect")
	require.NoError(t, err)
	assert.False(t, Done(dir, "collect"))

	w, err := CreateLineStream(filepath.Join(tmp, "out"), "collect")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, Commit(dir, "collect"))
	assert.True(t, Done(dir, "collect"))

	// A second, interrupted attempt at the same pass leaves a .tmp dir
	// that DiscardIncomplete cleans up without disturbing the committed
	// output.
	_, err = PassDir(dir, "collect")
	require.NoError(t, err)
	require.NoError(t, DiscardIncomplete(dir, "collect"))
	assert.True(t, Done(dir, "collect"))
}
