package commands

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/entra-ingest/internal/pipeline"
)

// CleanDomainsCmd writes the sorted canonical form of a domain list.
type CleanDomainsCmd struct {
	Input    string `required:"" help:"Newline-delimited domain list."`
	Output   string `required:"" help:"Where to write the sorted unique result."`
	Suffixes string `help:"Suffix list; without it the list is only lowercased and deduplicated."`
}

func (c *CleanDomainsCmd) Run(ctx context.Context, g *Globals) error {
	cfg := g.Config
	opts := pipeline.CleanOptions{
		Input:      cfg.InputPath(c.Input),
		Output:     cfg.OutputPath(c.Output),
		SuffixFile: cfg.InputPath(c.Suffixes),
	}
	n, err := pipeline.CleanDomains(ctx, opts)
	if err != nil {
		return err
	}
	log.Info().Int("domains", n).Str("output", opts.Output).Msg("domains cleaned")
	return nil
}
