// Package repo implements the data persistence layer for the identity
// directory, backed by GORM. This file contains database bootstrapping
// helpers for SQLite (pure Go driver) and schema creation.
package repo

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/entra-ingest/internal/domain"
)

// connPragmas are applied by the driver to every pooled connection, so
// foreign keys are enforced whichever connection runs a statement.
var connPragmas = []string{"foreign_keys(1)", "busy_timeout(5000)"}

// Options tune OpenSQLite.
type Options struct {
	// Verbose routes GORM's SQL logging to stdout at info level.
	Verbose bool
	// Tracing installs the OpenTelemetry GORM plugin.
	Tracing bool
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string, opts ...Options) (*gorm.DB, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	// Fail early if the parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	lvl := logger.Silent
	if o.Verbose {
		lvl = logger.Info
	}
	db, err := gorm.Open(sqlite.Open(withPragmas(path)), &gorm.Config{
		Logger:         logger.Default.LogMode(lvl),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		closeQuietly(db)
		return nil, err
	}
	db.Exec("PRAGMA synchronous=NORMAL;")

	if o.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			closeQuietly(db)
			return nil, err
		}
	}

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates the domains and users tables when they are absent.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Domain{},
		&domain.User{},
	)
}

// HasSchema reports whether both directory tables exist.
func HasSchema(db *gorm.DB) bool {
	m := db.Migrator()
	return m.HasTable(&domain.Domain{}) && m.HasTable(&domain.User{})
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func closeQuietly(db *gorm.DB) { _ = Close(db) }

// withPragmas appends the per-connection pragmas to a DSN.
func withPragmas(path string) string {
	var b strings.Builder
	b.WriteString(path)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	for _, p := range connPragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}
