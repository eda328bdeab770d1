// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic. HTTPMetrics
// measures request counts, latencies, in-flight concurrency, and response
// sizes with bounded label cardinality:
//
//   - method:   HTTP method verb
//   - path:     the registered Gin route (e.g. /api/v1/domains/:id/users);
//     "unmatched" when no route matched
//   - status:   numeric status code as a string (e.g. "200", "404")
//
// Collectors are registered on the registry handed to NewHTTPMetrics, so the
// server and tests each own their registry.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedPath labels requests that matched no route. Raw URLs would put
// user-supplied text (and unbounded cardinality) into label values.
const unmatchedPath = "unmatched"

// HTTPMetrics holds the HTTP collectors.
type HTTPMetrics struct {
	reqs     *prometheus.CounterVec
	lat      *prometheus.HistogramVec
	inflight prometheus.Gauge
	respSize *prometheus.HistogramVec
}

// NewHTTPMetrics creates the HTTP collectors and registers them on reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		reqs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		// Status is left out to keep histogram cardinality lower.
		lat: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		inflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_inflight",
				Help: "Current number of in-flight HTTP requests.",
			},
		),
		// Pages of domains and users stay well under a few hundred KiB.
		respSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "Size of HTTP responses in bytes.",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B..4MiB
			},
			[]string{"method", "path"},
		),
	}
	reg.MustRegister(m.reqs, m.lat, m.inflight, m.respSize)
	return m
}

// Handler returns a Gin middleware that instruments requests.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	r.Use(middleware.NewHTTPMetrics(reg).Handler())
//	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.inflight.Inc()
		defer m.inflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		method := c.Request.Method

		m.reqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.lat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written.
		if size := c.Writer.Size(); size >= 0 {
			m.respSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
