package revsource

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// edCommand is one instruction from an RCS delta body: "aN M" (insert M
// lines after original line N) or "dN M" (delete M lines starting at
// original line N). RCS delta bodies are ed scripts addressed against
// the ORIGINAL (pre-delta) line numbers, applied left to right without
// renumbering — insertions never shift a later command's line number.
type edCommand struct {
	Op    byte // 'a' or 'd'
	Line  int
	Count int
	Text  [][]byte // populated for 'a' only: the Count inserted lines
}

// splitLines splits data into lines, each retaining its trailing '\n'
// except possibly the last.
func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i+1])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

// parseEdScript parses an RCS delta body into its command sequence.
func parseEdScript(script []byte) ([]edCommand, error) {
	lines := splitLines(script)
	var cmds []edCommand
	i := 0
	for i < len(lines) {
		header := strings.TrimRight(string(lines[i]), "\n")
		i++
		if header == "" {
			continue
		}
		if header[0] != 'a' && header[0] != 'd' {
			return nil, fmt.Errorf("revsource: unrecognized ed command %q", header)
		}
		fields := strings.Fields(header[1:])
		if len(fields) != 2 {
			return nil, fmt.Errorf("revsource: malformed ed command %q", header)
		}
		lineNo, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("revsource: malformed ed command %q: %w", header, err)
		}
		count, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("revsource: malformed ed command %q: %w", header, err)
		}
		cmd := edCommand{Op: header[0], Line: lineNo, Count: count}
		if cmd.Op == 'a' {
			if i+count > len(lines) {
				return nil, fmt.Errorf("revsource: ed script truncated mid-insert at %q", header)
			}
			cmd.Text = lines[i : i+count]
			i += count
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// applyEdScript applies an RCS delta body to orig's text, producing the
// delta's target revision. Both trunk reverse-deltas (applied
// head-to-1.1) and branch forward-deltas (applied from the
// branchpoint) use this same command format and the same apply
// algorithm; only which text plays the role of "orig" differs (§9
// design note, revsource package summary).
func applyEdScript(orig, script []byte) ([]byte, error) {
	origLines := splitLines(orig)
	cmds, err := parseEdScript(script)
	if err != nil {
		return nil, err
	}
	var out [][]byte
	pos := 0 // number of orig lines already emitted into out
	for _, c := range cmds {
		switch c.Op {
		case 'd':
			upto := c.Line - 1
			if upto < pos || upto+c.Count > len(origLines) {
				return nil, fmt.Errorf("revsource: delete command %c%d %d out of range (have %d lines, at %d)", c.Op, c.Line, c.Count, len(origLines), pos)
			}
			out = append(out, origLines[pos:upto]...)
			pos = upto + c.Count
		case 'a':
			upto := c.Line
			if upto < pos || upto > len(origLines) {
				return nil, fmt.Errorf("revsource: add command %c%d %d out of range (have %d lines, at %d)", c.Op, c.Line, c.Count, len(origLines), pos)
			}
			out = append(out, origLines[pos:upto]...)
			pos = upto
			out = append(out, c.Text...)
		}
	}
	out = append(out, origLines[pos:]...)
	return bytes.Join(out, nil), nil
}
