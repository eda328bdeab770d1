package extract

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/tbourn/entra-ingest/internal/domain"
)

// TextDelimiter separates the fields of a text export line.
const TextDelimiter = ";"

// ParseLine parses one ";"-delimited export line. It reports false when the
// line has fewer than domain.MinFields fields.
func ParseLine(line string) (domain.UserRecord, bool) {
	cols := strings.Split(strings.TrimSpace(line), TextDelimiter)
	if len(cols) < domain.MinFields {
		return domain.UserRecord{}, false
	}
	license := ""
	if len(cols) > domain.MinFields {
		license = cols[4]
	}
	return domain.NewUserRecord(cols[0], cols[1], cols[2], cols[3], license), true
}

func parseText(r io.Reader, yield func(domain.Entry) bool) error {
	sc := newLineScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		ent := domain.Malformed(n, fmt.Sprintf("expected at least %d fields", domain.MinFields))
		if rec, ok := ParseLine(line); ok {
			ent = domain.Accepted(n, rec)
		}
		if !yield(ent) {
			return nil
		}
	}
	return sc.Err()
}

// spacedSplit matches the column gaps of the legacy listing.
var spacedSplit = regexp.MustCompile(`\s{2,}`)

// spacedFields is the exact column count of the legacy listing.
const spacedFields = 3

// ParseSpacedLine parses a "name  email  domain" line. Mail and principal
// name are both the email column; the domain column is taken as given,
// lowercased.
func ParseSpacedLine(line string) (domain.UserRecord, bool) {
	parts := spacedSplit.Split(strings.TrimSpace(line), -1)
	if len(parts) != spacedFields {
		return domain.UserRecord{}, false
	}
	rec := domain.NewUserRecord(parts[0], "", parts[1], parts[1], "")
	rec.Domain = strings.ToLower(strings.TrimSpace(parts[2]))
	return rec, true
}

func parseSpaced(r io.Reader, yield func(domain.Entry) bool) error {
	sc := newLineScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		ent := domain.Malformed(n, fmt.Sprintf("expected exactly %d columns", spacedFields))
		if rec, ok := ParseSpacedLine(line); ok {
			ent = domain.Accepted(n, rec)
		}
		if !yield(ent) {
			return nil
		}
	}
	return sc.Err()
}
