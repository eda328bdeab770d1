// Package extract turns identity export files into typed entries.
//
// Three layouts are understood:
//   - FormatText: one user per line, fields separated by ";"
//     (display name; object id; mail; principal name[; license]).
//   - FormatCSV: a tabular export with a header row, "," or ";" separated.
//     Columns are resolved by name once, at the header.
//   - FormatSpaced: a legacy listing with name, email and domain separated
//     by runs of two or more whitespace characters.
//
// Lines that cannot be turned into a record are never fatal; they are
// yielded as entries with domain.OutcomeSkippedMalformed so callers can
// count them.
package extract

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/tbourn/entra-ingest/internal/domain"
)

// Format selects the parser for an input file.
type Format string

const (
	FormatAuto   Format = "auto"
	FormatText   Format = "text"
	FormatCSV    Format = "csv"
	FormatSpaced Format = "spaced"
)

// ErrUnknownFormat is returned for a Format outside the constants above.
var ErrUnknownFormat = errors.New("unknown input format")

// Opener opens a fresh reader over the input. Each iteration of an
// Extractor calls it once, which is what makes the sequence restartable.
type Opener func() (io.ReadCloser, error)

// FileOpener returns an Opener for the file at path.
func FileOpener(path string) Opener {
	return func() (io.ReadCloser, error) { return os.Open(path) }
}

// Extractor yields the entries of one input, in input order.
//
// It follows the bufio.Scanner error convention: the sequences stop early
// on an I/O error, which is then reported by Err.
type Extractor struct {
	open  Opener
	parse func(io.Reader, func(domain.Entry) bool) error
	err   error
}

// New returns an extractor for the given format. FormatAuto picks FormatCSV
// for a ".csv" path and FormatText otherwise; for FormatCSV the separator is
// detected from the first bytes of the file.
func New(path string, format Format) (*Extractor, error) {
	if format == "" || format == FormatAuto {
		format = FormatText
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			format = FormatCSV
		}
	}
	open := FileOpener(path)
	switch format {
	case FormatText:
		return NewText(open), nil
	case FormatSpaced:
		return NewSpaced(open), nil
	case FormatCSV:
		sep, err := detectFrom(open)
		if err != nil {
			return nil, err
		}
		return NewCSV(open, sep), nil
	default:
		return nil, ErrUnknownFormat
	}
}

// NewText returns an extractor for ";"-delimited text.
func NewText(open Opener) *Extractor {
	return &Extractor{open: open, parse: parseText}
}

// NewSpaced returns an extractor for the legacy whitespace-aligned listing.
func NewSpaced(open Opener) *Extractor {
	return &Extractor{open: open, parse: parseSpaced}
}

// NewCSV returns an extractor for a CSV file with a header row, using sep
// as the field separator.
func NewCSV(open Opener, sep rune) *Extractor {
	return &Extractor{
		open: open,
		parse: func(r io.Reader, yield func(domain.Entry) bool) error {
			return parseCSV(r, sep, yield)
		},
	}
}

// Entries returns every entry of the input, accepted and skipped, in
// input order. Each call re-reads the input from the start.
func (e *Extractor) Entries() iter.Seq[domain.Entry] {
	return func(yield func(domain.Entry) bool) {
		e.err = nil
		rc, err := e.open()
		if err != nil {
			e.err = err
			return
		}
		defer rc.Close()
		e.err = e.parse(withoutBOM(rc), yield)
	}
}

// Records returns only the accepted records, in input order.
func (e *Extractor) Records() iter.Seq[domain.UserRecord] {
	return func(yield func(domain.UserRecord) bool) {
		for ent := range e.Entries() {
			if ent.Outcome != domain.OutcomeAccepted {
				continue
			}
			if !yield(ent.Record) {
				return
			}
		}
	}
}

// Err returns the error that ended the most recent iteration, if any.
func (e *Extractor) Err() error { return e.err }

// withoutBOM strips a leading UTF-8 byte order mark, which spreadsheet
// exports commonly prepend.
func withoutBOM(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// newLineScanner returns a scanner allowing long lines (4 MiB).
func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return sc
}
