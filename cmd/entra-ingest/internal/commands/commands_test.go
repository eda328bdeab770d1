package commands

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/entra-ingest/internal/config"
	"github.com/tbourn/entra-ingest/internal/extract"
	"github.com/tbourn/entra-ingest/internal/repo"
	"github.com/tbourn/entra-ingest/internal/services"
)

func newParser(t *testing.T, cli *CLI) *kong.Kong {
	t.Helper()
	p, err := kong.New(cli,
		kong.Name("entra-ingest"),
		kong.Vars{"version": "test"},
		kong.Exit(func(int) { t.Fatal("unexpected exit") }),
	)
	require.NoError(t, err)
	return p
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestParse_Ingest(t *testing.T) {
	var cli CLI
	kctx, err := newParser(t, &cli).Parse([]string{
		"--log-level", "debug",
		"ingest", "--input", "users.txt", "--db", "dir.db", "--format", "csv", "--metrics-file", "m.prom",
	})
	require.NoError(t, err)

	assert.Equal(t, "ingest", kctx.Command())
	assert.Equal(t, "debug", cli.LogLevel)
	assert.Equal(t, "users.txt", cli.Ingest.Input)
	assert.Equal(t, "dir.db", cli.Ingest.DB)
	assert.Equal(t, "csv", cli.Ingest.Format)
	assert.Equal(t, "m.prom", cli.Ingest.MetricsFile)
}

func TestParse_IngestDefaultsAndValidation(t *testing.T) {
	var cli CLI
	_, err := newParser(t, &cli).Parse([]string{"ingest", "--input", "users.txt"})
	require.NoError(t, err)
	assert.Equal(t, "auto", cli.Ingest.Format)

	_, err = newParser(t, &CLI{}).Parse([]string{"ingest"})
	require.Error(t, err, "--input is required")

	_, err = newParser(t, &CLI{}).Parse([]string{"ingest", "--input", "u.txt", "--format", "xml"})
	require.Error(t, err, "format is an enum")
}

func TestParse_CleanDomainsAndServe(t *testing.T) {
	var cli CLI
	kctx, err := newParser(t, &cli).Parse([]string{"clean-domains", "--input", "d.txt", "--output", "c.txt"})
	require.NoError(t, err)
	assert.Equal(t, "clean-domains", kctx.Command())

	cli = CLI{}
	kctx, err = newParser(t, &cli).Parse([]string{"serve", "--db", "dir.db", "--port", "9090"})
	require.NoError(t, err)
	assert.Equal(t, "serve", kctx.Command())
	assert.Equal(t, "9090", cli.Serve.Port)
}

func TestIngestOptions_ResolvesBareNames(t *testing.T) {
	cfg := config.Config{
		DBPath:     "database.db",
		InputDir:   "in",
		OutputDir:  "out",
		MetricsDir: "prom",
	}
	cmd := IngestCmd{
		Input:    "users.txt",
		Output:   "users.csv",
		Domains:  filepath.Join("lists", "domains.txt"),
		Suffixes: "suffixes.txt",
		Format:   "auto",
	}

	opts := cmd.options(cfg)
	assert.Equal(t, filepath.Join("in", "users.txt"), opts.Input)
	assert.Equal(t, filepath.Join("out", "users.csv"), opts.Output)
	assert.Equal(t, filepath.Join("lists", "domains.txt"), opts.DomainsFile)
	assert.Equal(t, filepath.Join("in", "suffixes.txt"), opts.SuffixFile)
	assert.Equal(t, "database.db", opts.DBPath)
	assert.Equal(t, extract.FormatAuto, opts.Format)
	assert.Equal(t, filepath.Join("prom", metricsFileName), opts.MetricsFile)

	cmd.DB = "other.db"
	cmd.MetricsFile = "explicit.prom"
	opts = cmd.options(cfg)
	assert.Equal(t, "other.db", opts.DBPath)
	assert.Equal(t, "explicit.prom", opts.MetricsFile)

	cfg.MetricsDir = ""
	cmd.MetricsFile = ""
	assert.Empty(t, cmd.options(cfg).MetricsFile)
}

func TestIngestCmd_Run(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "users.txt", "Jane Doe;abc-123;jane@example.com;jane@example.com;E5\n")
	g := &Globals{Config: config.Config{
		DBPath:    filepath.Join(dir, "database.db"),
		InputDir:  dir,
		OutputDir: dir,
	}}

	cmd := IngestCmd{Input: "users.txt", Output: "users.csv", Format: "auto"}
	require.NoError(t, cmd.Run(context.Background(), g))

	_, err := os.Stat(filepath.Join(dir, "users.csv"))
	require.NoError(t, err)

	db, err := repo.OpenSQLite(g.Config.DBPath)
	require.NoError(t, err)
	defer func() { _ = repo.Close(db) }()
	n, err := repo.CountUsers(context.Background(), db)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestIngestCmd_Run_MissingInput(t *testing.T) {
	dir := t.TempDir()
	g := &Globals{Config: config.Config{DBPath: filepath.Join(dir, "database.db"), InputDir: dir}}

	cmd := IngestCmd{Input: "absent.txt", Format: "auto"}
	err := cmd.Run(context.Background(), g)
	require.ErrorIs(t, err, services.ErrMissingFile)

	_, statErr := os.Stat(g.Config.DBPath)
	assert.True(t, os.IsNotExist(statErr), "store must not be created")
}

func TestCleanDomainsCmd_Run(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "domains.txt", "B.org\nb.org\na.com\n")
	g := &Globals{Config: config.Config{InputDir: dir, OutputDir: dir}}

	cmd := CleanDomainsCmd{Input: "domains.txt", Output: "clean.txt"}
	require.NoError(t, cmd.Run(context.Background(), g))

	data, err := os.ReadFile(filepath.Join(dir, "clean.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a.com\nb.org\n", string(data))
}

func TestServeCmd_Run_MissingStore(t *testing.T) {
	g := &Globals{Config: config.Config{DBPath: filepath.Join(t.TempDir(), "absent.db")}}
	err := (&ServeCmd{}).Run(context.Background(), g)
	require.ErrorIs(t, err, services.ErrMissingFile)
}

func TestServeCmd_Run_NoSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := repo.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close(db))

	err = (&ServeCmd{DB: path}).Run(context.Background(), &Globals{})
	require.ErrorIs(t, err, ErrNoSchema)
}

func TestServeCmd_Run_StopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dir.db")
	db, err := repo.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	require.NoError(t, repo.Close(db))

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.GinMode = "test"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- (&ServeCmd{DB: path, Port: "0"}).Run(ctx, &Globals{Config: cfg}) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestServe_ListenError(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:-1", Handler: http.NotFoundHandler()}
	err := serve(context.Background(), srv, time.Second)
	require.Error(t, err)
}

func TestNewHTTPServer_UsesConfig(t *testing.T) {
	cfg := config.Config{
		ReadTimeout:       time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      3 * time.Second,
		IdleTimeout:       4 * time.Second,
		MaxHeaderBytes:    512,
	}
	srv := newHTTPServer(":0", http.NotFoundHandler(), cfg)
	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, time.Second, srv.ReadTimeout)
	assert.Equal(t, 2*time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, 3*time.Second, srv.WriteTimeout)
	assert.Equal(t, 4*time.Second, srv.IdleTimeout)
	assert.Equal(t, 512, srv.MaxHeaderBytes)
}
