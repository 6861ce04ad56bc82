package revsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/rcs"
)

func TestApplyEdScriptInsertAndDelete(t *testing.T) {
	orig := []byte("one\ntwo\nthree\nfour\n")
	// Replace "two" with "TWO" and "too": delete original line 2, then
	// insert after original line 2 (RCS orders commands by line number).
	script := []byte("d2 1\na2 2\nTWO\ntoo\n")
	got, err := applyEdScript(orig, script)
	require.NoError(t, err)
	assert.Equal(t, "one\nTWO\ntoo\nthree\nfour\n", string(got))
}

func TestApplyEdScriptAppendAtEnd(t *testing.T) {
	orig := []byte("one\ntwo\n")
	script := []byte("a2 1\nthree\n")
	got, err := applyEdScript(orig, script)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\n", string(got))
}

const trunkAndBranchRCS = `head	1.2;
access;
symbols
	BR:1.1.0.2;
locks; strict;
comment	@# @;


1.2
date	2024.01.03.00.00.00;	author alice;	state Exp;
branches
	1.1.2.1;
next	1.1;

1.1
date	2024.01.02.00.00.00;	author alice;	state Exp;
branches;
next	;


desc
@@


1.2
log
@second@
text
@one
two
three
@


1.1
log
@first@
text
@d2 1
@


1.1.2.1
log
@branch@
text
@a1 1
branch line
@
`

func TestInProcessReaderReconstructsTrunkAndBranch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt,v")
	require.NoError(t, os.WriteFile(path, []byte(trunkAndBranchRCS), 0o644))

	locator := FileLocatorFunc(func(id model.ID) (string, error) { return path, nil })
	reader := NewInProcessReader(rcs.NewTextParser(nil), locator)

	head, err := reader.Reconstruct(context.Background(), 1, "1.2")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\n", string(head))

	trunk1, err := reader.Reconstruct(context.Background(), 1, "1.1")
	require.NoError(t, err)
	assert.Equal(t, "one\nthree\n", string(trunk1))

	branch, err := reader.Reconstruct(context.Background(), 1, "1.1.2.1")
	require.NoError(t, err)
	assert.Equal(t, "one\nbranch line\ntwo\nthree\n", string(branch))
}
