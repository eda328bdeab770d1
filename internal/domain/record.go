package domain

import (
	"strings"
)

// DefaultLicense is the license state recorded when an export line carries
// no license column, or an empty one.
const DefaultLicense = "UNLICENSED"

// MinFields is the minimum number of delimited fields an export line needs
// to be accepted as a record.
const MinFields = 4

// CSVHeader is the header row of the normalized CSV export.
var CSVHeader = []string{"display_name", "entra_id", "mail", "upn", "domain", "license"}

// UserRecord is a parsed, trimmed export line. It is the typed boundary
// between the extractor and the sink: nothing downstream looks up fields by
// position or name.
type UserRecord struct {
	DisplayName   string
	ExternalID    string
	Mail          string
	PrincipalName string
	Domain        string
	License       string
}

// NewUserRecord builds a record from raw field values. Every value is
// trimmed, the domain is derived from the principal name and an empty
// license falls back to DefaultLicense.
func NewUserRecord(displayName, externalID, mail, principal, license string) UserRecord {
	principal = strings.TrimSpace(principal)
	return UserRecord{
		DisplayName:   strings.TrimSpace(displayName),
		ExternalID:    strings.TrimSpace(externalID),
		Mail:          strings.TrimSpace(mail),
		PrincipalName: principal,
		Domain:        DomainOf(principal),
		License:       LicenseOrDefault(license),
	}
}

// DomainOf returns the lowercased text after the last "@" of a principal
// name, or "" when there is no "@".
func DomainOf(principal string) string {
	i := strings.LastIndexByte(principal, '@')
	if i < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(principal[i+1:]))
}

// LicenseOrDefault trims v and substitutes DefaultLicense when it is empty.
func LicenseOrDefault(v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return DefaultLicense
}

// CSVRow renders the record in CSVHeader column order.
func (r UserRecord) CSVRow() []string {
	return []string{r.DisplayName, r.ExternalID, r.Mail, r.PrincipalName, r.Domain, r.License}
}

// ToUser maps the record onto a User row owned by domainID.
func (r UserRecord) ToUser(domainID uint) *User {
	u := &User{
		DisplayName: r.DisplayName,
		EntraID:     r.ExternalID,
		UPN:         r.PrincipalName,
		DomainID:    domainID,
		License:     LicenseOrDefault(r.License),
	}
	if r.Mail != "" {
		mail := r.Mail
		u.Mail = &mail
	}
	return u
}

// Outcome classifies what happened to a single input line.
type Outcome int

const (
	// OutcomeAccepted marks a well-formed line (and, after the sink, an
	// inserted user).
	OutcomeAccepted Outcome = iota
	// OutcomeSkippedMalformed marks a line that could not be parsed into a
	// record, for example one with fewer than MinFields fields.
	OutcomeSkippedMalformed
	// OutcomeSkippedDuplicate marks a record whose mail already exists.
	OutcomeSkippedDuplicate
)

// String returns the stable label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeSkippedMalformed:
		return "skipped_malformed"
	case OutcomeSkippedDuplicate:
		return "skipped_duplicate"
	default:
		return "unknown"
	}
}

// Entry is one line of an export after extraction. Record is only
// meaningful when Outcome is OutcomeAccepted; Reason explains a skip.
type Entry struct {
	Line    int
	Record  UserRecord
	Outcome Outcome
	Reason  string
}

// Accepted wraps a record as an accepted entry.
func Accepted(line int, r UserRecord) Entry {
	return Entry{Line: line, Record: r, Outcome: OutcomeAccepted}
}

// Malformed builds a skipped entry for line with the given reason.
func Malformed(line int, reason string) Entry {
	return Entry{Line: line, Outcome: OutcomeSkippedMalformed, Reason: reason}
}
