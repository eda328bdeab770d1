// Package httpapi exposes an ingested store as a read-only directory API on
// Gin. Handlers only read; every route shares one middleware chain, set up
// in RegisterRoutes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/entra-ingest/internal/config"
	"github.com/tbourn/entra-ingest/internal/domain"
	"github.com/tbourn/entra-ingest/internal/http/handlers"
	"github.com/tbourn/entra-ingest/internal/http/middleware"
	"github.com/tbourn/entra-ingest/internal/repo"
	"github.com/tbourn/entra-ingest/internal/services"
)

const (
	healthPath  = "/health"
	metricsPath = "/metrics"

	// storeProbeTimeout bounds the count queries behind the store gauges.
	storeProbeTimeout = 2 * time.Second
)

// directoryRepoShim adapts the repository free functions to the
// services.DirectoryRepo interface expected by the DirectoryService.
type directoryRepoShim struct{}

// CountDomains proxies repo.CountDomains.
func (directoryRepoShim) CountDomains(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountDomains(ctx, db)
}

// ListDomainsPage proxies repo.ListDomainsPage.
func (directoryRepoShim) ListDomainsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]repo.DomainSummary, error) {
	return repo.ListDomainsPage(ctx, db, offset, limit)
}

// GetDomain proxies repo.GetDomain.
func (directoryRepoShim) GetDomain(ctx context.Context, db *gorm.DB, id uint) (*domain.Domain, error) {
	return repo.GetDomain(ctx, db, id)
}

// CountUsersByDomain proxies repo.CountUsersByDomain.
func (directoryRepoShim) CountUsersByDomain(ctx context.Context, db *gorm.DB, domainID uint) (int64, error) {
	return repo.CountUsersByDomain(ctx, db, domainID)
}

// ListUsersByDomainPage proxies repo.ListUsersByDomainPage.
func (directoryRepoShim) ListUsersByDomainPage(ctx context.Context, db *gorm.DB, domainID uint, offset, limit int) ([]domain.User, error) {
	return repo.ListUsersByDomainPage(ctx, db, domainID, offset, limit)
}

// DirectoryStats proxies repo.DirectoryStats.
func (directoryRepoShim) DirectoryStats(ctx context.Context, db *gorm.DB) (repo.Stats, error) {
	return repo.DirectoryStats(ctx, db)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and returns the Prometheus registry served at /metrics.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with address and object id scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip (the /metrics scrape is left alone)
//  7. Metrics
//  8. Rate limiter (per IP; probes exempt)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) *prometheus.Registry {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Read-only API: bodies are never read, cap them anyway (64 KiB)
	r.Use(limitBody(64 << 10))

	// 6) Compress JSON pages
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{metricsPath})))

	// 7) Prometheus metrics and /metrics endpoint
	reg := newRegistry(db)
	r.Use(middleware.NewHTTPMetrics(reg).Handler())
	r.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// 8) Token-bucket rate limiter per IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP()).
		Exempt(healthPath, metricsPath)
	r.Use(rl.Handler())

	// 9) CORS posture (allow all if none configured)
	corsCfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Accept", "Accept-Encoding", "If-None-Match"},
		ExposeHeaders:    []string{"X-Request-ID", "ETag", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		corsCfg.AllowAllOrigins = true
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist.
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		CacheControl: middleware.CacheRevalidate,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET(healthPath, func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(services.NewDirectoryService(db, directoryRepoShim{}))

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/domains", h.ListDomains)
		api.GET("/domains/:id/users", h.ListDomainUsers)
		api.GET("/stats", h.Stats)
	}
	return reg
}

// newRegistry builds the registry behind /metrics: runtime collectors plus
// gauges reading the store size at scrape time.
func newRegistry(db *gorm.DB) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		storeGauge("entra_directory_domains", "Domains in the store.", func(ctx context.Context) (int64, error) {
			return repo.CountDomains(ctx, db)
		}),
		storeGauge("entra_directory_users", "Users in the store.", func(ctx context.Context) (int64, error) {
			return repo.CountUsers(ctx, db)
		}),
	)
	return reg
}

// storeGauge reports -1 when the count query fails.
func storeGauge(name, help string, count func(context.Context) (int64, error)) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), storeProbeTimeout)
		defer cancel()
		n, err := count(ctx)
		if err != nil {
			return -1
		}
		return float64(n)
	})
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
