package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/entra-ingest/internal/canon"
	"github.com/tbourn/entra-ingest/internal/observability"
	"github.com/tbourn/entra-ingest/internal/services"
)

// CleanOptions describe a clean-domains run.
type CleanOptions struct {
	Input      string // newline-delimited domains (required)
	Output     string // sorted unique result (required)
	SuffixFile string // empty selects the dedup-only mode
}

// CleanDomains canonicalizes every domain of the input file, writes the
// sorted unique result to the output file and returns how many were written.
func CleanDomains(ctx context.Context, o CleanOptions) (n int, err error) {
	_, st := observability.StartStage(ctx, "clean_domains",
		attribute.String("input", o.Input),
		attribute.String("output", o.Output),
	)
	defer func() { st.End(err) }()

	paths := []string{o.Input}
	if o.SuffixFile != "" {
		paths = append(paths, o.SuffixFile)
	}
	if err := services.CheckFiles(paths...); err != nil {
		return 0, err
	}

	domains, err := canon.ReadLinesFile(o.Input)
	if err != nil {
		return 0, fmt.Errorf("read domains %s: %w", o.Input, err)
	}
	var suffixes canon.SuffixSet
	if o.SuffixFile != "" {
		if suffixes, err = canon.LoadSuffixFile(o.SuffixFile); err != nil {
			return 0, fmt.Errorf("read suffixes %s: %w", o.SuffixFile, err)
		}
	}

	out := canon.Clean(domains, suffixes)
	if err := writeLinesFile(o.Output, out); err != nil {
		return 0, fmt.Errorf("write %s: %w", o.Output, err)
	}
	st.SetAttributes(attribute.Int("domains", len(out)))
	return len(out), nil
}

func writeLinesFile(path string, lines []string) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return canon.WriteLines(f, lines)
}
