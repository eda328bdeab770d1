package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/entra-ingest/cmd/entra-ingest/internal/commands"
)

var version = "dev"

func main() {
	// A missing .env is fine; the environment alone may configure us.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var cli commands.CLI
	kctx := kong.Parse(&cli,
		kong.Name("entra-ingest"),
		kong.Description("Load an Entra ID user export into a relational directory store."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	globals, shutdown, err := commands.Setup(ctx, &cli, version)
	if err != nil {
		stop()
		kctx.FatalIfErrorf(err)
	}

	err = kctx.Run(globals)
	if serr := shutdown(context.Background()); serr != nil {
		log.Warn().Err(serr).Msg("tracer shutdown")
	}
	stop()
	kctx.FatalIfErrorf(err)
}
