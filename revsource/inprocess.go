package revsource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/rcowham/cvs2svn-go/model"
	"github.com/rcowham/cvs2svn-go/rcs"
)

// revRecord is everything one revision's RCS delta header and delta
// text contribute, as collected by fileSink.
type revRecord struct {
	branches []string
	next     string
	text     []byte // full snapshot for the head revision, an ed script otherwise
}

// fileSink accumulates one ,v file's revisions in file order so
// InProcessReader can compute the predecessor chain afterward.
type fileSink struct {
	revisions map[string]*revRecord
	order     []string // revision numbers in delta-header order; first is head
}

func newFileSink() *fileSink {
	return &fileSink{revisions: make(map[string]*revRecord)}
}

func (s *fileSink) DefineSymbol(name, revisionNumber string) {}

func (s *fileSink) DefineRevision(number string, date time.Time, author, state string, branches []string, next string) {
	s.revisions[number] = &revRecord{branches: branches, next: next}
	s.order = append(s.order, number)
}

func (s *fileSink) SetRevisionInfo(number, log string, textOrDelta []byte) {
	if rec, ok := s.revisions[number]; ok {
		rec.text = textOrDelta
	}
}

// InProcessReader reconstructs revision text by re-parsing the ,v file
// (cached per fileID) and replaying its delta chain: reverse deltas
// down the trunk from the head snapshot, forward deltas out along each
// branch from its branchpoint — the "walks RCS next-chain deltas"
// reader named in §6's design note.
type InProcessReader struct {
	Parser  rcs.Parser
	Locator FileLocator

	mu    sync.Mutex
	cache map[model.ID]*fileSink
}

// NewInProcessReader returns a reader using parser to read ,v files and
// locator to map file ids to paths.
func NewInProcessReader(parser rcs.Parser, locator FileLocator) *InProcessReader {
	return &InProcessReader{Parser: parser, Locator: locator, cache: make(map[model.ID]*fileSink)}
}

func (r *InProcessReader) fileOf(fileID model.ID) (*fileSink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.cache[fileID]; ok {
		return s, nil
	}
	path, err := r.Locator.PathFor(fileID)
	if err != nil {
		return nil, errors.Wrapf(err, "revsource: locating file %d", fileID)
	}
	sink := newFileSink()
	if err := r.Parser.Parse(path, sink); err != nil {
		return nil, errors.Wrapf(err, "revsource: parsing %s", path)
	}
	r.cache[fileID] = sink
	return sink, nil
}

// Reconstruct implements Reader.
func (r *InProcessReader) Reconstruct(ctx context.Context, fileID model.ID, revisionNumber string) ([]byte, error) {
	sink, err := r.fileOf(fileID)
	if err != nil {
		return nil, err
	}

	head, predOf, err := chainInfo(sink)
	if err != nil {
		return nil, err
	}
	if _, ok := sink.revisions[revisionNumber]; !ok {
		return nil, fmt.Errorf("revsource: unknown revision %s for file %d", revisionNumber, fileID)
	}

	var chain []string
	cur := revisionNumber
	for cur != head {
		chain = append(chain, cur)
		pred, ok := predOf[cur]
		if !ok {
			return nil, fmt.Errorf("revsource: broken delta chain reaching revision %s of file %d", revisionNumber, fileID)
		}
		cur = pred
	}
	chain = append(chain, head)
	reverseStrings(chain)

	text := append([]byte(nil), sink.revisions[chain[0]].text...)
	for _, rev := range chain[1:] {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		next, err := applyEdScript(text, sink.revisions[rev].text)
		if err != nil {
			return nil, errors.Wrapf(err, "revsource: applying delta for revision %s of file %d", rev, fileID)
		}
		text = next
	}
	return text, nil
}

// chainInfo determines the head revision (the one nobody points to) and
// the predecessor of every other revision, from the next-chain and
// branches lists alone (the Sink interface in §6 never receives RCS's
// "head" admin field, so this recomputes it).
func chainInfo(sink *fileSink) (head string, predOf map[string]string, err error) {
	predOf = make(map[string]string)
	for num, rec := range sink.revisions {
		if rec.next != "" {
			predOf[rec.next] = num
		}
		for _, b := range rec.branches {
			predOf[b] = num
		}
	}
	for _, num := range sink.order {
		if _, ok := predOf[num]; !ok {
			return num, predOf, nil
		}
	}
	return "", nil, fmt.Errorf("revsource: could not determine head revision (every revision has a predecessor)")
}

func reverseStrings(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
