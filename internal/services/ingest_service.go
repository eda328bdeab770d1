// Package services – IngestService
//
// This file implements the relational sink of an ingest run. It resolves
// domain names to ids (pre-seeding the known-domains list first), inserts
// one user row per accepted record and turns duplicate mails into a
// per-record skip instead of a failed run.
//
// The whole run is a single transaction. Each user insert runs inside a
// nested transaction (a SAVEPOINT on SQLite) so that a unique violation can
// be rolled back without discarding the rows inserted before it.
package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/entra-ingest/internal/canon"
	"github.com/tbourn/entra-ingest/internal/domain"
	"github.com/tbourn/entra-ingest/internal/repo"
)

// Recorder receives per-run instrumentation. *metrics.Recorder satisfies it;
// a nil Recorder disables instrumentation.
type Recorder interface {
	RecordOutcome(o domain.Outcome)
	DomainCreated(seeded bool)
}

// IngestService writes extracted records into the directory store.
type IngestService struct {
	// DB is the store handle. Ingest opens its own transaction on it.
	DB *gorm.DB
	// Metrics is optional.
	Metrics Recorder
}

// NewIngestService constructs an IngestService.
func NewIngestService(db *gorm.DB, m Recorder) *IngestService {
	return &IngestService{DB: db, Metrics: m}
}

// Ingest consumes entries and persists every accepted record.
//
// Semantics:
//   - known domains (trimmed, lowercased, deduplicated, blanks dropped) are
//     upserted first.
//   - A record's domain is looked up by exact name and inserted when absent;
//     one id per name within the run.
//   - A duplicate mail skips the record (OutcomeSkippedDuplicate).
//   - Malformed entries are counted and logged at debug level.
//
// Errors:
//   - ErrUnresolvedDomain when a domain name cannot be mapped to an id.
//   - Any other database error, or ctx cancellation, aborts the run and
//     rolls back everything written by it.
func (s *IngestService) Ingest(ctx context.Context, entries iter.Seq[domain.Entry], known []string) (*Report, error) {
	return s.ingest(ctx, entries, nil, known)
}

// Source is a restartable entry stream that reports read errors after
// iteration, bufio.Scanner style. *extract.Extractor satisfies it.
type Source interface {
	Entries() iter.Seq[domain.Entry]
	Err() error
}

// IngestSource is Ingest over a Source. A read error that ends the stream
// early rolls the run back instead of committing a truncated input.
func (s *IngestService) IngestSource(ctx context.Context, src Source, known []string) (*Report, error) {
	return s.ingest(ctx, src.Entries(), src.Err, known)
}

func (s *IngestService) ingest(ctx context.Context, entries iter.Seq[domain.Entry], readErr func() error, known []string) (*Report, error) {
	rep := NewReport()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cache := make(map[string]uint)

		for _, name := range canon.Dedup(known) {
			if _, err := s.upsertDomain(ctx, tx, cache, rep, name, true); err != nil {
				return err
			}
			rep.DomainsSeeded++
		}

		for e := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if e.Outcome == domain.OutcomeSkippedMalformed {
				log.Debug().
					Str("run_id", rep.RunID).
					Int("line", e.Line).
					Str("reason", e.Reason).
					Msg("skipped malformed record")
				s.count(rep, e.Outcome)
				continue
			}

			out, err := s.insert(ctx, tx, cache, rep, e.Record)
			if err != nil {
				return fmt.Errorf("line %d: %w", e.Line, err)
			}
			if out == domain.OutcomeSkippedDuplicate {
				log.Debug().
					Str("run_id", rep.RunID).
					Int("line", e.Line).
					Str("domain", e.Record.Domain).
					Msg("skipped duplicate mail")
			}
			s.count(rep, out)
		}
		if readErr != nil {
			if err := readErr(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
		}
		return nil
	})
	rep.FinishedAt = time.Now().UTC()
	if err != nil {
		return rep, err
	}
	return rep, nil
}

func (s *IngestService) insert(ctx context.Context, tx *gorm.DB, cache map[string]uint, rep *Report, r domain.UserRecord) (domain.Outcome, error) {
	id, err := s.upsertDomain(ctx, tx, cache, rep, r.Domain, false)
	if err != nil {
		return 0, err
	}

	err = tx.Transaction(func(sp *gorm.DB) error {
		return repo.CreateUser(ctx, sp, r.ToUser(id))
	})
	switch {
	case err == nil:
		return domain.OutcomeAccepted, nil
	case errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicate(err):
		return domain.OutcomeSkippedDuplicate, nil
	default:
		return 0, err
	}
}

// upsertDomain returns the id for name, creating the row when it is absent.
func (s *IngestService) upsertDomain(ctx context.Context, tx *gorm.DB, cache map[string]uint, rep *Report, name string, seeded bool) (uint, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}

	id, err := repo.FindDomainID(ctx, tx, name)
	switch {
	case err == nil:
	case isNotFound(err):
		d, cerr := repo.CreateDomain(ctx, tx, name)
		if cerr != nil {
			return 0, fmt.Errorf("create domain %q: %w", name, cerr)
		}
		id = d.ID
		rep.DomainsCreated++
		if s.Metrics != nil {
			s.Metrics.DomainCreated(seeded)
		}
	default:
		return 0, fmt.Errorf("lookup domain %q: %w", name, err)
	}

	if id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnresolvedDomain, name)
	}
	cache[name] = id
	return id, nil
}

func (s *IngestService) count(rep *Report, o domain.Outcome) {
	rep.Add(o)
	if s.Metrics != nil {
		s.Metrics.RecordOutcome(o)
	}
}

// CheckFiles verifies that every path exists, returning ErrMissingFile
// wrapped with the first missing path.
func CheckFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrMissingFile, p)
			}
			return fmt.Errorf("stat %s: %w", p, err)
		}
	}
	return nil
}

// isNotFound treats repo-level not found sentinels as "not found".
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// isDuplicate detects unique-constraint violations that the dialector did
// not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	// SQLite: "UNIQUE constraint failed"
	// Postgres: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
