package rcs

import (
	"fmt"
	"strings"
)

// scanner is a cursor over an RCS file's raw bytes. RCS's grammar is
// simple enough that a hand-rolled cursor beats pulling in a parser
// generator: keywords and revision numbers are bare tokens delimited by
// whitespace or ';', and the only quoting rule is "@...@" with "@@" as
// an escaped literal "@".
type scanner struct {
	buf []byte
	pos int
}

func newScanner(buf []byte) *scanner {
	return &scanner{buf: buf}
}

func (s *scanner) eof() bool { return s.pos >= len(s.buf) }

func (s *scanner) skipWS() {
	for !s.eof() {
		switch s.buf[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

// peekKeyword reports whether the next token equals word, without
// consuming it.
func (s *scanner) peekKeyword(word string) bool {
	save := s.pos
	tok, ok := s.tryToken()
	s.pos = save
	return ok && tok == word
}

// tryToken reads the next bare token (stops at whitespace or ';'),
// returning false if positioned at EOF or at '@' or ';'.
func (s *scanner) tryToken() (string, bool) {
	s.skipWS()
	if s.eof() {
		return "", false
	}
	if s.buf[s.pos] == '@' || s.buf[s.pos] == ';' {
		return "", false
	}
	start := s.pos
	for !s.eof() {
		c := s.buf[s.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ';' {
			break
		}
		s.pos++
	}
	return string(s.buf[start:s.pos]), true
}

// token reads the next bare token, erroring if none is available.
func (s *scanner) token() (string, error) {
	tok, ok := s.tryToken()
	if !ok {
		return "", fmt.Errorf("rcs: expected token at offset %d", s.pos)
	}
	return tok, nil
}

// expectSemi consumes a ';', skipping any leading whitespace.
func (s *scanner) expectSemi() error {
	s.skipWS()
	if s.eof() || s.buf[s.pos] != ';' {
		return fmt.Errorf("rcs: expected ';' at offset %d", s.pos)
	}
	s.pos++
	return nil
}

// tokenList reads tokens up to (and consuming) the next ';'.
func (s *scanner) tokenList() ([]string, error) {
	var out []string
	for {
		s.skipWS()
		if s.eof() {
			return nil, fmt.Errorf("rcs: unterminated list at offset %d", s.pos)
		}
		if s.buf[s.pos] == ';' {
			s.pos++
			return out, nil
		}
		tok, err := s.token()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
}

// atString reads an "@...@"-quoted string, unescaping "@@" to "@". The
// leading '@' must be the next non-whitespace byte.
func (s *scanner) atString() (string, error) {
	b, err := s.atBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *scanner) atBytes() ([]byte, error) {
	s.skipWS()
	if s.eof() || s.buf[s.pos] != '@' {
		return nil, fmt.Errorf("rcs: expected '@' at offset %d", s.pos)
	}
	s.pos++
	var out strings.Builder
	for {
		if s.eof() {
			return nil, fmt.Errorf("rcs: unterminated @-string starting before offset %d", s.pos)
		}
		c := s.buf[s.pos]
		if c != '@' {
			out.WriteByte(c)
			s.pos++
			continue
		}
		// c == '@': either the terminator or an escaped "@@".
		if s.pos+1 < len(s.buf) && s.buf[s.pos+1] == '@' {
			out.WriteByte('@')
			s.pos += 2
			continue
		}
		s.pos++
		return []byte(out.String()), nil
	}
}

// tryTokenOrEmpty reads the next bare token, returning "" (not an
// error) when positioned directly at ';' — RCS allows empty values for
// fields like "next ;" on the last revision of a chain.
func (s *scanner) tryTokenOrEmpty() (string, error) {
	tok, ok := s.tryToken()
	if !ok {
		s.skipWS()
		if !s.eof() && s.buf[s.pos] == ';' {
			return "", nil
		}
		return "", fmt.Errorf("rcs: expected token or ';' at offset %d", s.pos)
	}
	return tok, nil
}

// skipPhraseRest consumes tokens and @-strings up to and including the
// next bare ';', for skipping newphrase extensions this parser doesn't
// interpret.
func (s *scanner) skipPhraseRest() error {
	for {
		s.skipWS()
		if s.eof() {
			return fmt.Errorf("rcs: unterminated phrase at offset %d", s.pos)
		}
		if s.buf[s.pos] == ';' {
			s.pos++
			return nil
		}
		if s.buf[s.pos] == '@' {
			if _, err := s.atBytes(); err != nil {
				return err
			}
			continue
		}
		if _, err := s.token(); err != nil {
			return err
		}
	}
}

// expectKeyword consumes word as the next token, erroring on mismatch.
func (s *scanner) expectKeyword(word string) error {
	tok, err := s.token()
	if err != nil {
		return err
	}
	if tok != word {
		return fmt.Errorf("rcs: expected keyword %q, got %q at offset %d", word, tok, s.pos)
	}
	return nil
}
