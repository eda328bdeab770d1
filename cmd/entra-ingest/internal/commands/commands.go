// Package commands implements the entra-ingest subcommands. Each command is a
// kong node whose Run method receives the process context and the Globals
// built once in main.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/tbourn/entra-ingest/internal/config"
	"github.com/tbourn/entra-ingest/internal/observability"
	"github.com/tbourn/entra-ingest/internal/sysutil"
)

// CLI is the root of the command tree.
type CLI struct {
	LogLevel  string           `help:"Log level (debug, info, warn, error). Overrides LOG_LEVEL."`
	LogPretty bool             `help:"Human-readable console logs. Overrides LOG_PRETTY."`
	Version   kong.VersionFlag `help:"Print the version and exit."`

	Ingest       IngestCmd       `cmd:"" help:"Extract users from an export and load them into the store."`
	CleanDomains CleanDomainsCmd `cmd:"" name:"clean-domains" help:"Canonicalize and deduplicate a domain list."`
	Serve        ServeCmd        `cmd:"" help:"Serve the read-only directory API over a store."`
}

// Globals carries what every command needs.
type Globals struct {
	Config  config.Config
	Version string
}

// Setup loads configuration, configures the global logger and tracing, and
// returns the Globals with a shutdown function for the tracer provider.
func Setup(ctx context.Context, cli *CLI, version string) (*Globals, func(context.Context) error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	cfg.LogPretty = cfg.LogPretty || cli.LogPretty
	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	shutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return nil, nil, fmt.Errorf("setup tracing: %w", err)
	}
	return &Globals{Config: cfg, Version: version}, shutdown, nil
}
