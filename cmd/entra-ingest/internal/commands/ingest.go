package commands

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/entra-ingest/internal/config"
	"github.com/tbourn/entra-ingest/internal/extract"
	"github.com/tbourn/entra-ingest/internal/pipeline"
	"github.com/tbourn/entra-ingest/internal/sysutil"
)

// metricsFileName is the textfile written under METRICS_TEXTFILE_DIR.
const metricsFileName = "entra_ingest.prom"

// IngestCmd runs the full pipeline. Bare file names are looked up under
// INPUT_DIR (inputs) and OUTPUT_DIR (the CSV).
type IngestCmd struct {
	Input       string `required:"" help:"User export (semicolon text, CSV or spaced listing)."`
	Output      string `help:"Normalized CSV to write. Skipped when empty."`
	DB          string `name:"db" help:"SQLite store, created when absent. Defaults to DB_PATH."`
	Domains     string `help:"Known-domains list seeded into the store."`
	Suffixes    string `help:"Suffix list; when given, domains are canonicalized."`
	Format      string `enum:"auto,text,csv,spaced" default:"auto" help:"Input format (${enum})."`
	MetricsFile string `name:"metrics-file" help:"Prometheus textfile. Defaults under METRICS_TEXTFILE_DIR."`
}

// options maps the flags onto pipeline options.
func (c *IngestCmd) options(cfg config.Config) pipeline.Options {
	return pipeline.Options{
		Input:       cfg.InputPath(c.Input),
		Output:      cfg.OutputPath(c.Output),
		DBPath:      sysutil.FirstNonEmpty(c.DB, cfg.DBPath),
		DomainsFile: cfg.InputPath(c.Domains),
		SuffixFile:  cfg.InputPath(c.Suffixes),
		Format:      extract.Format(c.Format),
		MetricsFile: c.metricsFile(cfg),
		Verbose:     zerolog.GlobalLevel() <= zerolog.DebugLevel,
		Tracing:     cfg.OTEL.Enabled,
	}
}

func (c *IngestCmd) metricsFile(cfg config.Config) string {
	if c.MetricsFile != "" || cfg.MetricsDir == "" {
		return c.MetricsFile
	}
	return filepath.Join(cfg.MetricsDir, metricsFileName)
}

func (c *IngestCmd) Run(ctx context.Context, g *Globals) error {
	opts := c.options(g.Config)
	log.Debug().
		Str("input", opts.Input).
		Str("output", opts.Output).
		Str("format", string(opts.Format)).
		Msg("ingest starting")

	res, err := pipeline.Run(ctx, opts)
	if err != nil {
		return err
	}

	ev := log.Info().
		Object("report", res.Report).
		Str("store", res.DBPath)
	if res.Output != "" {
		ev = ev.Str("output", res.Output).Int("rows", res.Written)
	}
	ev.Msg("store ready")
	return nil
}
