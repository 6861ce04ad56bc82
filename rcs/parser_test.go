package rcs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRCS = `head	1.2;
access;
symbols
	REL1_0:1.1.1.1
	vendor:1.1.1;
locks; strict;
comment	@# @;


1.2
date	2024.03.15.10.30.00;	author alice;	state Exp;
branches;
next	1.1;

1.1
date	2024.03.14.09.00.00;	author bob;	state Exp;
branches
	1.1.1.1;
next	;

1.1.1.1
date	2024.03.14.09.00.00;	author bob;	state Exp;
branches;
next	;


desc
@Initial import.@


1.2
log
@Fix the frobnicator.@
text
@line one
line two with an embedded @@ sign
@


1.1
log
@Initial revision@
text
@line one
@


1.1.1.1
log
@Vendor import@
text
@line one
@
`

type recordingSink struct {
	symbols   map[string]string
	revisions map[string][]string // number -> [author, state, next]
	dates     map[string]time.Time
	branches  map[string][]string
	logs      map[string]string
	texts     map[string][]byte
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		symbols:   make(map[string]string),
		revisions: make(map[string][]string),
		dates:     make(map[string]time.Time),
		branches:  make(map[string][]string),
		logs:      make(map[string]string),
		texts:     make(map[string][]byte),
	}
}

func (r *recordingSink) DefineSymbol(name, revisionNumber string) {
	r.symbols[name] = revisionNumber
}

func (r *recordingSink) DefineRevision(number string, date time.Time, author, state string, branches []string, next string) {
	r.revisions[number] = []string{author, state, next}
	r.dates[number] = date
	r.branches[number] = branches
}

func (r *recordingSink) SetRevisionInfo(number, log string, textOrDelta []byte) {
	r.logs[number] = log
	r.texts[number] = textOrDelta
}

func TestTextParserParsesSampleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.c,v")
	require.NoError(t, os.WriteFile(path, []byte(sampleRCS), 0o644))

	p := NewTextParser(nil)
	sink := newRecordingSink()
	require.NoError(t, p.Parse(path, sink))

	assert.Equal(t, "1.1.1.1", sink.symbols["REL1_0"])
	assert.Equal(t, "1.1.1", sink.symbols["vendor"])

	require.Contains(t, sink.revisions, "1.2")
	assert.Equal(t, []string{"alice", "Exp", "1.1"}, sink.revisions["1.2"])
	assert.Equal(t, []string{"bob", "Exp", ""}, sink.revisions["1.1"])
	assert.Equal(t, []string{"1.1.1.1"}, sink.branches["1.1"])

	wantDate := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, wantDate, sink.dates["1.2"])

	assert.Equal(t, "Fix the frobnicator.", sink.logs["1.2"])
	assert.Equal(t, "line one\nline two with an embedded @ sign\n", string(sink.texts["1.2"]))
	assert.Equal(t, "Initial revision", sink.logs["1.1"])
	assert.Equal(t, "Vendor import", sink.logs["1.1.1.1"])
}

func TestParseRCSDateTwoDigitYear(t *testing.T) {
	got, err := parseRCSDate("99.12.31.23.59.59")
	require.NoError(t, err)
	assert.Equal(t, time.Date(1999, 12, 31, 23, 59, 59, 0, time.UTC), got)
}

func TestParseRCSDateFourDigitYear(t *testing.T) {
	got, err := parseRCSDate("2024.01.02.03.04.05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), got)
}
