package main

// cvsprune strips the file content bytes out of an SVN dump file while
// preserving every other structural record (revisions, node headers,
// properties, copy-from info, text/content-length accounting) — the
// same "blobs become placeholders, structure survives" trick the
// teacher's gitfilter applies to git fast-export streams, adapted to
// svn dump format's own length-prefixed records instead of git
// fast-import's "data <<n>>" blocks.

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/rcowham/cvs2svn-go/internal/version"
)

const placeholder = "(content pruned)\n"

// pruneRecord holds one dump "paragraph": header lines, optional
// property bytes (kept verbatim — they are small and structural), and
// the text bytes that follow them (replaced).
type pruneRecord struct {
	headers   []string
	propBytes []byte
	hasText   bool
}

func parseHeaderInt(line, key string) (int, bool) {
	if !strings.HasPrefix(line, key) {
		return 0, false
	}
	v := strings.TrimSpace(strings.TrimPrefix(line, key))
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// prune copies src to dst, replacing every node record's text content
// with a fixed placeholder and rewriting the Content-length/
// Text-content-length headers to match.
func prune(src *bufio.Reader, dst *bufio.Writer) error {
	for {
		rec, eof, err := readRecord(src)
		if err != nil {
			return err
		}
		if err := writeRecord(dst, rec); err != nil {
			return err
		}
		if eof {
			return dst.Flush()
		}
	}
}

func readRecord(src *bufio.Reader) (*pruneRecord, bool, error) {
	rec := &pruneRecord{}
	propLen, textLen := -1, -1

	for {
		line, err := src.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return rec, true, nil
			}
			return nil, false, err
		}
		if strings.TrimRight(line, "\n") == "" {
			// Blank line ends the header block, unless we have not seen any
			// header yet (blank separator lines between records).
			if len(rec.headers) == 0 {
				if err == io.EOF {
					return rec, true, nil
				}
				continue
			}
			break
		}
		if n, ok := parseHeaderInt(line, "Prop-content-length:"); ok {
			propLen = n
		}
		if n, ok := parseHeaderInt(line, "Text-content-length:"); ok {
			textLen = n
		}
		if strings.HasPrefix(line, "Content-length:") {
			// Rewritten below once we know the new text length; drop the
			// original line for now by not appending it directly.
			rec.headers = append(rec.headers, "Content-length: __REWRITE__")
			if err == io.EOF {
				break
			}
			continue
		}
		rec.headers = append(rec.headers, strings.TrimRight(line, "\n"))
		if err == io.EOF {
			break
		}
	}

	if propLen >= 0 {
		buf := make([]byte, propLen)
		if _, err := io.ReadFull(src, buf); err != nil && err != io.EOF {
			return nil, false, fmt.Errorf("cvsprune: reading %d property bytes: %w", propLen, err)
		}
		rec.propBytes = buf
	}
	if textLen >= 0 {
		if _, err := io.CopyN(io.Discard, src, int64(textLen)); err != nil && err != io.EOF {
			return nil, false, fmt.Errorf("cvsprune: discarding %d text bytes: %w", textLen, err)
		}
		rec.hasText = true
	}
	return rec, false, nil
}

func writeRecord(dst *bufio.Writer, rec *pruneRecord) error {
	newTextLen := 0
	if rec.hasText {
		newTextLen = len(placeholder)
	}
	newContentLen := len(rec.propBytes) + newTextLen

	for _, h := range rec.headers {
		if h == "Content-length: __REWRITE__" {
			h = fmt.Sprintf("Content-length: %d", newContentLen)
		}
		if strings.HasPrefix(h, "Text-content-length:") {
			h = fmt.Sprintf("Text-content-length: %d", newTextLen)
		}
		if _, err := dst.WriteString(h + "\n"); err != nil {
			return err
		}
	}
	if len(rec.headers) > 0 {
		if _, err := dst.WriteString("\n"); err != nil {
			return err
		}
	}
	if len(rec.propBytes) > 0 {
		if _, err := dst.Write(rec.propBytes); err != nil {
			return err
		}
	}
	if rec.hasText {
		if _, err := dst.WriteString(placeholder); err != nil {
			return err
		}
	}
	if len(rec.headers) > 0 {
		if _, err := dst.WriteString("\n\n"); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	var (
		input = kingpin.Arg(
			"input",
			"SVN dump file to prune (reads stdin if omitted).",
		).String()
		output = kingpin.Flag(
			"output",
			"File to write the pruned dump to (writes stdout if omitted).",
		).Short('o').String()
	)
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version(version.Print("cvsprune")).Author("cvs2svn-go")
	kingpin.CommandLine.Help = "Strips file content from an SVN dump file, keeping its structure intact\n"
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	in := os.Stdin
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cvsprune: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}
	out := os.Stdout
	if *output != "" {
		f, err := os.OpenFile(*output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cvsprune: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	if err := prune(bufio.NewReader(in), bufio.NewWriter(out)); err != nil {
		fmt.Fprintf(os.Stderr, "cvsprune: %v\n", err)
		os.Exit(1)
	}
}
