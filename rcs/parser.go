package rcs

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// TextParser parses RCS ,v files directly, without shelling out to `co`
// or `rlog`. It is grounded on the admin/delta-header/delta-text grammar
// described in RCS's own file format and on the field shapes the
// retrieval pack's cvs.RCSFile/cvs.Delta types name (author, state,
// branches, next, log, text) — reworked here as a Sink-driving parser
// rather than a fully materialized struct, per §6's interface.
type TextParser struct {
	Logger *logrus.Logger
}

// NewTextParser returns a parser that logs at logger's configured level
// (nil selects a default, matching NewGitP4Transfer's own nil-logger
// tolerance).
func NewTextParser(logger *logrus.Logger) *TextParser {
	if logger == nil {
		logger = logrus.New()
	}
	return &TextParser{Logger: logger}
}

// Parse reads path and drives sink with its admin section's symbols,
// each revision's headers, and then each revision's log/text, in that
// file order.
func (p *TextParser) Parse(path string, sink Sink) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "rcs: reading %s", path)
	}
	s := newScanner(buf)

	if err := p.parseAdmin(s, sink); err != nil {
		return errors.Wrapf(err, "rcs: parsing admin section of %s", path)
	}
	if err := p.parseDeltaHeaders(s, sink); err != nil {
		return errors.Wrapf(err, "rcs: parsing delta headers of %s", path)
	}
	if err := p.parseDesc(s); err != nil {
		return errors.Wrapf(err, "rcs: parsing desc of %s", path)
	}
	if err := p.parseDeltaText(s, sink); err != nil {
		return errors.Wrapf(err, "rcs: parsing delta text of %s", path)
	}
	return nil
}

func (p *TextParser) parseAdmin(s *scanner, sink Sink) error {
	if err := s.expectKeyword("head"); err != nil {
		return err
	}
	if _, err := s.tryTokenOrEmpty(); err != nil {
		return err
	}
	if err := s.expectSemi(); err != nil {
		return err
	}

	if s.peekKeyword("branch") {
		if err := s.expectKeyword("branch"); err != nil {
			return err
		}
		if _, err := s.tryTokenOrEmpty(); err != nil {
			return err
		}
		if err := s.expectSemi(); err != nil {
			return err
		}
	}

	if err := s.expectKeyword("access"); err != nil {
		return err
	}
	if _, err := s.tokenList(); err != nil {
		return err
	}

	if err := s.expectKeyword("symbols"); err != nil {
		return err
	}
	symbols, err := s.tokenList()
	if err != nil {
		return err
	}
	for _, sym := range symbols {
		name, rev, ok := strings.Cut(sym, ":")
		if !ok {
			p.Logger.Warnf("rcs: malformed symbol entry %q, skipping", sym)
			continue
		}
		sink.DefineSymbol(name, rev)
	}

	if err := s.expectKeyword("locks"); err != nil {
		return err
	}
	if _, err := s.tokenList(); err != nil {
		return err
	}
	if s.peekKeyword("strict") {
		if err := s.expectKeyword("strict"); err != nil {
			return err
		}
		if err := s.expectSemi(); err != nil {
			return err
		}
	}

	if s.peekKeyword("comment") {
		if err := s.expectKeyword("comment"); err != nil {
			return err
		}
		if _, err := s.atString(); err != nil {
			return err
		}
		if err := s.expectSemi(); err != nil {
			return err
		}
	}
	if s.peekKeyword("expand") {
		if err := s.expectKeyword("expand"); err != nil {
			return err
		}
		if _, err := s.atString(); err != nil {
			return err
		}
		if err := s.expectSemi(); err != nil {
			return err
		}
	}

	// Any further newphrases before the first delta header are skipped
	// generically: admin-section extensions are rare in the wild and the
	// pipeline has no use for them.
	for !s.eof() && !looksLikeRevisionNumber(s) {
		if _, err := s.token(); err != nil {
			return err
		}
		if err := s.skipPhraseRest(); err != nil {
			return err
		}
	}
	return nil
}

func (p *TextParser) parseDeltaHeaders(s *scanner, sink Sink) error {
	for !s.eof() && !s.peekKeyword("desc") {
		num, err := s.token()
		if err != nil {
			return err
		}

		if err := s.expectKeyword("date"); err != nil {
			return err
		}
		dateTok, err := s.token()
		if err != nil {
			return err
		}
		if err := s.expectSemi(); err != nil {
			return err
		}
		date, err := parseRCSDate(dateTok)
		if err != nil {
			p.Logger.Warnf("rcs: revision %s has unparsable date %q: %v", num, dateTok, err)
		}

		if err := s.expectKeyword("author"); err != nil {
			return err
		}
		author, err := s.token()
		if err != nil {
			return err
		}
		if err := s.expectSemi(); err != nil {
			return err
		}

		if err := s.expectKeyword("state"); err != nil {
			return err
		}
		state, err := s.tryTokenOrEmpty()
		if err != nil {
			return err
		}
		if err := s.expectSemi(); err != nil {
			return err
		}

		if err := s.expectKeyword("branches"); err != nil {
			return err
		}
		branches, err := s.tokenList()
		if err != nil {
			return err
		}

		if err := s.expectKeyword("next"); err != nil {
			return err
		}
		next, err := s.tryTokenOrEmpty()
		if err != nil {
			return err
		}
		if err := s.expectSemi(); err != nil {
			return err
		}

		// Skip any per-delta newphrases (commitid, kopt, etc.) until the
		// next revision number or "desc".
		for !s.eof() && !s.peekKeyword("desc") && !looksLikeRevisionNumber(s) {
			if _, err := s.token(); err != nil {
				return err
			}
			if err := s.skipPhraseRest(); err != nil {
				return err
			}
		}

		sink.DefineRevision(num, date, author, state, branches, next)
	}
	return nil
}

func (p *TextParser) parseDesc(s *scanner) error {
	if err := s.expectKeyword("desc"); err != nil {
		return err
	}
	_, err := s.atString()
	return err
}

func (p *TextParser) parseDeltaText(s *scanner, sink Sink) error {
	for {
		s.skipWS()
		if s.eof() {
			return nil
		}
		num, err := s.token()
		if err != nil {
			return err
		}

		if err := s.expectKeyword("log"); err != nil {
			return err
		}
		logMsg, err := s.atString()
		if err != nil {
			return err
		}

		for !s.peekKeyword("text") {
			if _, err := s.token(); err != nil {
				return err
			}
			if err := s.skipPhraseRest(); err != nil {
				return err
			}
		}
		if err := s.expectKeyword("text"); err != nil {
			return err
		}
		text, err := s.atBytes()
		if err != nil {
			return err
		}

		sink.SetRevisionInfo(num, logMsg, text)
	}
}

// looksLikeRevisionNumber reports whether the scanner's next non-space
// byte starts a bare revision number (a digit), as opposed to a keyword.
func looksLikeRevisionNumber(s *scanner) bool {
	save := s.pos
	s.skipWS()
	ok := !s.eof() && s.buf[s.pos] >= '0' && s.buf[s.pos] <= '9'
	s.pos = save
	return ok
}

// parseRCSDate parses RCS's "yy.mm.dd.hh.mm.ss" (or post-1999
// "yyyy.mm.dd.hh.mm.ss") timestamp, treating it as UTC — the timestamp
// is untrusted input regardless (§6), normalized for encoding/locale
// correctness in a later pass, not here.
func parseRCSDate(s string) (time.Time, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 6 {
		return time.Time{}, errors.Errorf("rcs: malformed date %q", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, err
	}
	if len(parts[0]) == 2 {
		year += 1900
	}
	nums := make([]int, 5)
	for i, part := range parts[1:] {
		n, err := strconv.Atoi(part)
		if err != nil {
			return time.Time{}, err
		}
		nums[i] = n
	}
	return time.Date(year, time.Month(nums[0]), nums[1], nums[2], nums[3], nums[4], 0, time.UTC), nil
}
