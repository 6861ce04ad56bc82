package passes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcowham/cvs2svn-go/config"
	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/rcs"
	"github.com/rcowham/cvs2svn-go/store"
)

const trunkOnlyFixture = `head	1.2;
access;
symbols
	REL1_0:1.1;
locks; strict;
comment	@# @;


1.2
date	2024.01.02.00.00.00;	author alice;	state Exp;
branches;
next	1.1;

1.1
date	2024.01.01.00.00.00;	author alice;	state Exp;
branches;
next	;


desc
@@


1.2
log
@second@
text
@v2
@


1.1
log
@first@
text
@v1
@
`

const branchFixture = `head	1.2;
access;
symbols
	BRANCH_A:1.2.0.2;
locks; strict;
comment	@# @;


1.2
date	2024.01.02.00.00.00;	author alice;	state Exp;
branches
	1.2.2.1;
next	1.1;

1.1
date	2024.01.01.00.00.00;	author alice;	state Exp;
branches;
next	;

1.2.2.1
date	2024.01.03.00.00.00;	author bob;	state Exp;
branches;
next	;


desc
@@


1.2
log
@second@
text
@v2
@


1.1
log
@first@
text
@v1
@


1.2.2.1
log
@on the branch@
text
@v2
branch line
@
`

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+",v"), []byte(content), 0o644))
}

func TestCollectWritesTrunkItemsAndTag(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "trunkonly", trunkOnlyFixture)

	workDir := t.TempDir()
	cfg := &config.Config{
		ProjectRoots: []config.ProjectRoot{{Name: "main", CVSRoot: root, TrunkPath: "trunk"}},
	}
	require.NoError(t, CollectPass(CollectOptions{Cfg: cfg, Parser: rcs.NewTextParser(nil), WorkDir: workDir}))

	require.True(t, store.Done(workDir, Collect))
	dir := filepath.Join(workDir, Collect)

	items, err := store.OpenKeyedStore[*model.Item](filepath.Join(dir, "items"))
	require.NoError(t, err)
	defer items.Close()
	all, err := items.All()
	require.NoError(t, err)

	var rev11, rev12, tag *model.Item
	for _, it := range all {
		switch {
		case it.Kind == model.ItemRevision && it.RevisionNumber == "1.1":
			rev11 = it
		case it.Kind == model.ItemRevision && it.RevisionNumber == "1.2":
			rev12 = it
		case it.Kind == model.ItemTag:
			tag = it
		}
	}
	require.NotNil(t, rev11)
	require.NotNil(t, rev12)
	require.NotNil(t, tag)

	assert.Equal(t, model.NoID, rev11.Predecessor)
	assert.Equal(t, rev11.ID, rev12.Predecessor)
	assert.Equal(t, rev11.ID, tag.Predecessor)
	assert.Equal(t, tag.SymbolID, tag.LineOfDevelopment)

	symbols, err := store.OpenKeyedStore[*model.Symbol](filepath.Join(dir, "symbols"))
	require.NoError(t, err)
	defer symbols.Close()
	symList, err := symbols.All()
	require.NoError(t, err)
	require.Len(t, symList, 1)
	assert.Equal(t, "REL1_0", symList[0].Name)
}

func TestCollectBuildsBranchCreationAndDependents(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "branched", branchFixture)

	workDir := t.TempDir()
	cfg := &config.Config{
		ProjectRoots: []config.ProjectRoot{{Name: "main", CVSRoot: root, TrunkPath: "trunk"}},
	}
	require.NoError(t, CollectPass(CollectOptions{Cfg: cfg, Parser: rcs.NewTextParser(nil), WorkDir: workDir}))

	dir := filepath.Join(workDir, Collect)
	items, err := store.OpenKeyedStore[*model.Item](filepath.Join(dir, "items"))
	require.NoError(t, err)
	defer items.Close()
	all, err := items.All()
	require.NoError(t, err)

	var branchItem, branchRev, trunkHead *model.Item
	for _, it := range all {
		switch {
		case it.Kind == model.ItemBranch:
			branchItem = it
		case it.Kind == model.ItemRevision && it.RevisionNumber == "1.2.2.1":
			branchRev = it
		case it.Kind == model.ItemRevision && it.RevisionNumber == "1.2":
			trunkHead = it
		}
	}
	require.NotNil(t, branchItem)
	require.NotNil(t, branchRev)
	require.NotNil(t, trunkHead)

	assert.Equal(t, trunkHead.ID, branchItem.Predecessor)
	assert.Equal(t, branchItem.SymbolID, branchRev.LineOfDevelopment)
	assert.Equal(t, model.NoID, branchRev.Predecessor)
	require.Len(t, branchItem.DependentBranchCommits, 1)
	assert.Equal(t, branchRev.ID, branchItem.DependentBranchCommits[0])

	stats, err := store.OpenKeyedStore[*model.SymbolStats](filepath.Join(dir, "symbolstats"))
	require.NoError(t, err)
	defer stats.Close()
	statList, err := stats.All()
	require.NoError(t, err)
	require.Len(t, statList, 1)
	assert.Equal(t, 1, statList[0].FilesWithBranchCommits)
	assert.Equal(t, 1, statList[0].BranchCount)
}

func TestCollectIsResumable(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "trunkonly", trunkOnlyFixture)
	workDir := t.TempDir()
	cfg := &config.Config{ProjectRoots: []config.ProjectRoot{{Name: "main", CVSRoot: root}}}
	opts := CollectOptions{Cfg: cfg, Parser: rcs.NewTextParser(nil), WorkDir: workDir}

	require.NoError(t, CollectPass(opts))
	require.True(t, store.Done(workDir, Collect))
	// Running again should not error and should not be mistaken for a
	// resumed-but-incomplete pass (pipeline.Run is what actually skips a
	// Done pass; Collect itself is idempotent to re-run in isolation).
	require.NoError(t, CollectPass(opts))
}
