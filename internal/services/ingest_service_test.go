package services

import (
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/entra-ingest/internal/domain"
	"github.com/tbourn/entra-ingest/internal/extract"
	"github.com/tbourn/entra-ingest/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close(db) })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

type countingRecorder struct {
	outcomes map[domain.Outcome]int
	seeded   int
	derived  int
}

func (r *countingRecorder) RecordOutcome(o domain.Outcome) {
	if r.outcomes == nil {
		r.outcomes = map[domain.Outcome]int{}
	}
	r.outcomes[o]++
}

func (r *countingRecorder) DomainCreated(seeded bool) {
	if seeded {
		r.seeded++
	} else {
		r.derived++
	}
}

func textEntries(s string) iter.Seq[domain.Entry] {
	ex := extract.NewText(func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(s)), nil
	})
	return ex.Entries()
}

func userRecord(name, mail, license string) domain.Entry {
	return domain.Accepted(1, domain.NewUserRecord(name, "id-"+name, mail, mail, license))
}

func TestIngest_TwoLineScenario(t *testing.T) {
	db := newTestDB(t)
	svc := NewIngestService(db, nil)
	ctx := context.Background()

	in := "Jane Doe;abc-123;jane@example.com;jane@example.com;E5\n" +
		"John Roe;def-456;john@example.com;john@example.com\n"

	rep, err := svc.Ingest(ctx, textEntries(in), nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rep.Accepted != 2 || rep.DomainsCreated != 1 || rep.Total() != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if rep.FinishedAt.IsZero() || rep.RunID == "" {
		t.Fatalf("report not finalized: %+v", rep)
	}

	if n, _ := repo.CountDomains(ctx, db); n != 1 {
		t.Fatalf("domains = %d; want 1", n)
	}
	id, err := repo.FindDomainID(ctx, db, "example.com")
	if err != nil {
		t.Fatalf("FindDomainID: %v", err)
	}
	users, err := repo.ListUsersByDomainPage(ctx, db, id, 0, 10)
	if err != nil {
		t.Fatalf("ListUsersByDomainPage: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("users = %d; want 2", len(users))
	}
	if users[0].License != "E5" || users[1].License != domain.DefaultLicense {
		t.Fatalf("licenses = %q, %q", users[0].License, users[1].License)
	}
	if users[0].EntraID != "abc-123" || users[0].UPN != "jane@example.com" {
		t.Fatalf("unexpected first user: %+v", users[0])
	}
}

func TestIngest_SecondRunIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewIngestService(db, nil)
	ctx := context.Background()

	entries := slices.Values([]domain.Entry{
		userRecord("Jane", "jane@example.com", "E5"),
		userRecord("Bob", "bob@other.org", ""),
	})

	if _, err := svc.Ingest(ctx, entries, []string{"example.com"}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	rep, err := svc.Ingest(ctx, entries, []string{"example.com"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if rep.Accepted != 0 || rep.SkippedDuplicate != 2 || rep.DomainsCreated != 0 {
		t.Fatalf("second run report: %+v", rep)
	}
	if n, _ := repo.CountDomains(ctx, db); n != 2 {
		t.Fatalf("domains = %d; want 2", n)
	}
	if n, _ := repo.CountUsers(ctx, db); n != 2 {
		t.Fatalf("users = %d; want 2", n)
	}
}

func TestIngest_DuplicateMailSkipsButKeepsOthers(t *testing.T) {
	db := newTestDB(t)
	rec := &countingRecorder{}
	svc := NewIngestService(db, rec)
	ctx := context.Background()

	entries := slices.Values([]domain.Entry{
		userRecord("Jane", "jane@example.com", "E5"),
		userRecord("Jane Twin", "jane@example.com", "E3"),
		domain.Malformed(3, "too few fields"),
		userRecord("Ann", "ann@example.com", ""),
		userRecord("Nomail", "", ""),
		userRecord("Nomail2", "", ""),
	})

	rep, err := svc.Ingest(ctx, entries, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rep.Accepted != 4 || rep.SkippedDuplicate != 1 || rep.SkippedMalformed != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if rec.outcomes[domain.OutcomeAccepted] != 4 ||
		rec.outcomes[domain.OutcomeSkippedDuplicate] != 1 ||
		rec.outcomes[domain.OutcomeSkippedMalformed] != 1 {
		t.Fatalf("recorder outcomes: %v", rec.outcomes)
	}

	got, err := repo.FindUserByMail(ctx, db, "jane@example.com")
	if err != nil {
		t.Fatalf("FindUserByMail: %v", err)
	}
	if got.DisplayName != "Jane" {
		t.Fatalf("first writer should win, got %q", got.DisplayName)
	}
	// Records without mail derive the empty domain.
	if _, err := repo.FindDomainID(ctx, db, ""); err != nil {
		t.Fatalf("expected empty-named domain: %v", err)
	}
}

func TestIngest_PreSeedsKnownDomains(t *testing.T) {
	db := newTestDB(t)
	rec := &countingRecorder{}
	svc := NewIngestService(db, rec)
	ctx := context.Background()

	known := []string{" Example.com ", "", "contoso.com", "example.com"}
	entries := slices.Values([]domain.Entry{userRecord("Jane", "jane@example.com", "")})

	rep, err := svc.Ingest(ctx, entries, known)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rep.DomainsSeeded != 2 {
		t.Fatalf("DomainsSeeded = %d; want 2", rep.DomainsSeeded)
	}
	if rep.DomainsCreated != 2 || rec.seeded != 2 || rec.derived != 0 {
		t.Fatalf("created=%d seeded=%d derived=%d", rep.DomainsCreated, rec.seeded, rec.derived)
	}
	for _, name := range []string{"example.com", "contoso.com"} {
		if _, err := repo.FindDomainID(ctx, db, name); err != nil {
			t.Fatalf("domain %q not seeded: %v", name, err)
		}
	}
}

func TestIngest_CanceledContextRollsBack(t *testing.T) {
	db := newTestDB(t)
	svc := NewIngestService(db, nil)

	ctx, cancel := context.WithCancel(context.Background())
	entries := func(yield func(domain.Entry) bool) {
		if !yield(userRecord("Jane", "jane@example.com", "")) {
			return
		}
		cancel()
		yield(userRecord("Ann", "ann@example.com", ""))
	}

	if _, err := svc.Ingest(ctx, entries, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n, _ := repo.CountUsers(context.Background(), db); n != 0 {
		t.Fatalf("users = %d; want 0 after rollback", n)
	}
}

func TestIngest_MissingSchemaAborts(t *testing.T) {
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "bare.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close(db) })

	svc := NewIngestService(db, nil)
	entries := slices.Values([]domain.Entry{userRecord("Jane", "jane@example.com", "")})
	if _, err := svc.Ingest(context.Background(), entries, nil); err == nil {
		t.Fatalf("expected error without schema")
	}
}

type failingSource struct {
	entries []domain.Entry
	err     error
}

func (f failingSource) Entries() iter.Seq[domain.Entry] { return slices.Values(f.entries) }
func (f failingSource) Err() error                      { return f.err }

func TestIngestSource_ReadErrorRollsBack(t *testing.T) {
	db := newTestDB(t)
	svc := NewIngestService(db, nil)
	ctx := context.Background()

	src := failingSource{
		entries: []domain.Entry{userRecord("Jane", "jane@example.com", "")},
		err:     io.ErrUnexpectedEOF,
	}
	if _, err := svc.IngestSource(ctx, src, nil); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected read error, got %v", err)
	}
	if n, _ := repo.CountUsers(ctx, db); n != 0 {
		t.Fatalf("users = %d; want 0 after rollback", n)
	}

	src.err = nil
	rep, err := svc.IngestSource(ctx, src, nil)
	if err != nil || rep.Accepted != 1 {
		t.Fatalf("IngestSource = %+v, %v", rep, err)
	}
}

func TestCheckFiles(t *testing.T) {
	dir := t.TempDir()
	ok := filepath.Join(dir, "present.txt")
	if err := os.WriteFile(ok, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := CheckFiles(ok); err != nil {
		t.Fatalf("CheckFiles(present): %v", err)
	}
	missing := filepath.Join(dir, "absent.txt")
	err := CheckFiles(ok, missing)
	if !errors.Is(err, ErrMissingFile) {
		t.Fatalf("expected ErrMissingFile, got %v", err)
	}
	if !strings.Contains(err.Error(), "absent.txt") {
		t.Fatalf("error should name the path: %v", err)
	}
}

func TestIsDuplicate(t *testing.T) {
	cases := map[string]bool{
		"UNIQUE constraint failed: users.mail":                 true,
		"duplicate key value violates unique constraint \"x\"": true,
		"FOREIGN KEY constraint failed":                        false,
	}
	for msg, want := range cases {
		if got := isDuplicate(errors.New(msg)); got != want {
			t.Errorf("isDuplicate(%q) = %v; want %v", msg, got, want)
		}
	}
}
