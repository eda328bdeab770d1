package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/entra-ingest/internal/config"
	httpapi "github.com/tbourn/entra-ingest/internal/http"
	"github.com/tbourn/entra-ingest/internal/repo"
	"github.com/tbourn/entra-ingest/internal/services"
	"github.com/tbourn/entra-ingest/internal/sysutil"
)

// shutdownGrace bounds how long in-flight requests may finish on exit.
const shutdownGrace = 10 * time.Second

// ErrNoSchema is returned when serve is pointed at a file that was never
// ingested into.
var ErrNoSchema = errors.New("store has no directory schema")

// ServeCmd serves the read-only directory API until the context ends.
type ServeCmd struct {
	DB   string `name:"db" help:"SQLite store to serve. Defaults to DB_PATH."`
	Port string `help:"Listen port. Defaults to PORT."`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	cfg := g.Config
	path := sysutil.FirstNonEmpty(c.DB, cfg.DBPath)
	if err := services.CheckFiles(path); err != nil {
		return err
	}

	db, err := repo.OpenSQLite(path, repo.Options{Tracing: cfg.OTEL.Enabled})
	if err != nil {
		return fmt.Errorf("open store %s: %w", path, err)
	}
	defer func() {
		if cerr := repo.Close(db); cerr != nil {
			log.Warn().Err(cerr).Msg("close store")
		}
	}()
	if !repo.HasSchema(db) {
		return fmt.Errorf("%w: %s", ErrNoSchema, path)
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg)

	srv := newHTTPServer(net.JoinHostPort("", sysutil.FirstNonEmpty(c.Port, cfg.Port)), r, cfg)
	log.Info().
		Str("addr", srv.Addr).
		Str("store", path).
		Str("base_path", cfg.APIBasePath).
		Str("version", g.Version).
		Msg("directory api listening")
	return serve(ctx, srv, shutdownGrace)
}

func newHTTPServer(addr string, h http.Handler, cfg config.Config) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

// serve runs srv until it fails or ctx is done, then shuts it down within
// grace. A clean shutdown returns nil.
func serve(ctx context.Context, srv *http.Server, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
