package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tbourn/entra-ingest/internal/domain"
)

// ErrMissingColumn is returned when a CSV header lacks a required column.
var ErrMissingColumn = errors.New("csv header is missing a required column")

// sniffSize is how many leading bytes DetectSeparator inspects.
const sniffSize = 1024

// DetectSeparator inspects the first bytes of r and returns ';' when it is
// strictly more frequent than ',', and ',' otherwise.
func DetectSeparator(r io.Reader) (rune, error) {
	buf := make([]byte, sniffSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, err
	}
	sample := string(buf[:n])
	if strings.Count(sample, ";") > strings.Count(sample, ",") {
		return ';', nil
	}
	return ',', nil
}

func detectFrom(open Opener) (rune, error) {
	rc, err := open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return DetectSeparator(rc)
}

// Column names understood in a CSV header (case-insensitive).
const (
	colDisplayName = "display_name"
	colEntraID     = "entra_id"
	colMail        = "mail"
	colUPN         = "upn"
	colLicense     = "license"
)

// columns maps header names to field positions.
type columns map[string]int

func newColumns(header []string) (columns, error) {
	cols := make(columns, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	if _, ok := cols[colMail]; !ok {
		return nil, fmt.Errorf("%w: %q (header %v)", ErrMissingColumn, colMail, header)
	}
	return cols, nil
}

func (c columns) has(name string) bool {
	_, ok := c[name]
	return ok
}

func (c columns) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// record maps a row onto a UserRecord. Without a upn column the mail acts
// as the principal name the domain is derived from.
func (c columns) record(row []string) domain.UserRecord {
	mail := c.get(row, colMail)
	principal := mail
	if c.has(colUPN) {
		principal = c.get(row, colUPN)
	}
	return domain.NewUserRecord(
		c.get(row, colDisplayName),
		c.get(row, colEntraID),
		mail,
		principal,
		c.get(row, colLicense),
	)
}

func parseCSV(r io.Reader, sep rune, yield func(domain.Entry) bool) error {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read csv header: %w", err)
	}
	cols, err := newColumns(header)
	if err != nil {
		return err
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var ent domain.Entry
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return err
			}
			ent = domain.Malformed(pe.StartLine, pe.Err.Error())
		} else {
			line, _ := cr.FieldPos(0)
			ent = domain.Accepted(line, cols.record(row))
		}
		if !yield(ent) {
			return nil
		}
	}
}
