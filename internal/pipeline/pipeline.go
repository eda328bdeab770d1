// Package pipeline runs the ingest end to end: extract records from an
// export file, optionally canonicalize their domains, write the normalized
// CSV, and load the relational store. Every stage runs inside its own span.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/entra-ingest/internal/canon"
	"github.com/tbourn/entra-ingest/internal/domain"
	"github.com/tbourn/entra-ingest/internal/extract"
	"github.com/tbourn/entra-ingest/internal/metrics"
	"github.com/tbourn/entra-ingest/internal/observability"
	"github.com/tbourn/entra-ingest/internal/repo"
	"github.com/tbourn/entra-ingest/internal/services"
)

// Options describe one ingest run. Paths are used as given.
type Options struct {
	Input       string         // export file (required)
	Output      string         // normalized CSV; empty skips the CSV
	DBPath      string         // SQLite store, created when absent (required)
	DomainsFile string         // known-domains list; empty seeds nothing
	SuffixFile  string         // suffix list; empty keeps domains as derived
	Format      extract.Format // FormatAuto when empty
	MetricsFile string         // Prometheus textfile; empty disables

	Verbose bool // GORM SQL logging
	Tracing bool // GORM OpenTelemetry plugin
}

// Result is what a successful run produced.
type Result struct {
	Report  *services.Report
	Written int // data rows in the normalized CSV
	DBPath  string
	Output  string
}

// ErrNoStore is returned when Options.DBPath is empty.
var ErrNoStore = errors.New("no store path given")

// Run executes the ingest described by o. The store handle is closed on
// every exit path.
func Run(ctx context.Context, o Options) (res *Result, err error) {
	ctx, run := observability.StartStage(ctx, "run",
		attribute.String("input", o.Input),
		attribute.String("db", o.DBPath),
	)
	defer func() { run.End(err) }()

	if o.DBPath == "" {
		return nil, ErrNoStore
	}
	if err := services.CheckFiles(required(o)...); err != nil {
		return nil, err
	}

	src, known, err := prepare(ctx, o)
	if err != nil {
		return nil, err
	}

	res = &Result{DBPath: o.DBPath, Output: o.Output}
	if o.Output != "" {
		if res.Written, err = writeNormalized(ctx, src, o.Output); err != nil {
			return nil, err
		}
	}

	db, err := openStore(ctx, o)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := repo.Close(db); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
	}()

	rec := metrics.NewRecorder()
	_, sink := observability.StartStage(ctx, "sink")
	rep, err := services.NewIngestService(db, rec).IngestSource(ctx, src, known)
	if rep != nil {
		sink.SetAttributes(
			attribute.String("run_id", rep.RunID),
			attribute.Int("accepted", rep.Accepted),
			attribute.Int("skipped_malformed", rep.SkippedMalformed),
			attribute.Int("skipped_duplicate", rep.SkippedDuplicate),
		)
	}
	if err := sink.End(err); err != nil {
		return nil, err
	}
	res.Report = rep
	rec.ObserveRun(rep.Duration(), rep.FinishedAt)

	if o.MetricsFile != "" {
		_, st := observability.StartStage(ctx, "metrics")
		if err := st.End(rec.WriteTextfile(o.MetricsFile)); err != nil {
			return nil, fmt.Errorf("write metrics textfile: %w", err)
		}
	}
	return res, nil
}

func required(o Options) []string {
	paths := []string{o.Input}
	for _, p := range []string{o.DomainsFile, o.SuffixFile} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// prepare builds the entry source and loads the known-domains list, both
// canonicalized when a suffix file is given.
func prepare(ctx context.Context, o Options) (src services.Source, known []string, err error) {
	_, st := observability.StartStage(ctx, "extract", attribute.String("format", string(o.Format)))
	defer func() { st.End(err) }()

	ex, err := extract.New(o.Input, o.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("open input %s: %w", o.Input, err)
	}
	src = ex

	if o.DomainsFile != "" {
		if known, err = canon.ReadLinesFile(o.DomainsFile); err != nil {
			return nil, nil, fmt.Errorf("read domains %s: %w", o.DomainsFile, err)
		}
	}

	if o.SuffixFile != "" {
		suffixes, err := canon.LoadSuffixFile(o.SuffixFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read suffixes %s: %w", o.SuffixFile, err)
		}
		st.SetAttributes(attribute.Int("suffixes", len(suffixes)))
		src = canonicalSource{Source: ex, suffixes: suffixes}
		known = canon.Clean(known, suffixes)
	}
	return src, known, nil
}

func writeNormalized(ctx context.Context, src services.Source, path string) (n int, err error) {
	_, st := observability.StartStage(ctx, "write_csv", attribute.String("output", path))
	defer func() { st.End(err) }()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}
	n, err = extract.WriteCSVFile(path, accepted(src.Entries()))
	if err != nil {
		return n, fmt.Errorf("write %s: %w", path, err)
	}
	if err := src.Err(); err != nil {
		return n, fmt.Errorf("read input: %w", err)
	}
	st.SetAttributes(attribute.Int("rows", n))
	log.Debug().Str("output", path).Int("rows", n).Msg("normalized csv written")
	return n, nil
}

func openStore(ctx context.Context, o Options) (db *gorm.DB, err error) {
	_, st := observability.StartStage(ctx, "store", attribute.String("db", o.DBPath))
	defer func() { st.End(err) }()

	db, err = repo.OpenSQLite(o.DBPath, repo.Options{Verbose: o.Verbose, Tracing: o.Tracing})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", o.DBPath, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		_ = repo.Close(db)
		return nil, fmt.Errorf("migrate store %s: %w", o.DBPath, err)
	}
	return db, nil
}

// canonicalSource rewrites the domain of every accepted entry.
type canonicalSource struct {
	services.Source
	suffixes canon.SuffixSet
}

func (c canonicalSource) Entries() iter.Seq[domain.Entry] {
	return func(yield func(domain.Entry) bool) {
		for e := range c.Source.Entries() {
			if e.Outcome == domain.OutcomeAccepted {
				e.Record.Domain = c.suffixes.Canonicalize(e.Record.Domain)
			}
			if !yield(e) {
				return
			}
		}
	}
}

func accepted(entries iter.Seq[domain.Entry]) iter.Seq[domain.UserRecord] {
	return func(yield func(domain.UserRecord) bool) {
		for e := range entries {
			if e.Outcome != domain.OutcomeAccepted {
				continue
			}
			if !yield(e.Record) {
				return
			}
		}
	}
}
