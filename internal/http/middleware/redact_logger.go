// This file implements RedactingLogger, a structured HTTP access logger that
// scrubs directory identifiers from request metadata before emitting logs.
//
// The directory API serves user records, so query strings and headers may
// carry the same values the store holds:
//   - mail and UPN addresses (both are address-shaped)
//   - Entra object ids (GUIDs, any version)
//
// Bodies are never logged. Sensitive headers (Authorization, Cookie,
// Set-Cookie, plus configured ones) are masked entirely.
package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	objectIDRE = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	addressRE  = regexp.MustCompile(`(?i)[a-z0-9._%+\-']+(?:@|%40)[a-z0-9.\-]+\.[a-z]{2,}\b`)
)

// Redact replaces object ids and mail/UPN addresses in s with fixed
// placeholders. Percent-encoded "@" is recognized so raw query strings are
// covered without decoding them.
func Redact(s string) string {
	if s == "" {
		return s
	}
	// Ids first: a GUID local part would otherwise be swallowed as an address.
	s = objectIDRE.ReplaceAllString(s, "[REDACTED:id]")
	return addressRE.ReplaceAllString(s, "[REDACTED:address]")
}

// RedactOptions names headers, beyond Authorization, Cookie and Set-Cookie,
// whose values are never logged. Names are case-insensitive.
type RedactOptions struct {
	MaskHeaders []string
}

// RedactingLogger attaches the request-scoped logger returned by LoggerFrom,
// then logs through it one "http_request" line per request: redacted query,
// status, response size, latency and scrubbed request headers. The level is
// INFO, WARN for 4xx and ERROR for 5xx.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]bool{"authorization": true, "cookie": true, "set-cookie": true}
	for _, name := range opts.MaskHeaders {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			masked[name] = true
		}
	}

	return func(c *gin.Context) {
		begin := time.Now()

		// Unmatched routes have no pattern; the raw path may embed an address.
		route := c.FullPath()
		if route == "" {
			route = Redact(c.Request.URL.Path)
		}
		attachLogger(c, route)
		query := Redact(c.Request.URL.RawQuery)
		headers := scrubHeaders(c.Request.Header, masked)

		c.Next()

		code := c.Writer.Status()
		lg := LoggerFrom(c)
		ev := lg.Info()
		if code >= http.StatusInternalServerError {
			ev = lg.Error()
		} else if code >= http.StatusBadRequest {
			ev = lg.Warn()
		}
		ev.Str("query", query).
			Int("status", code).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(begin)).
			Interface("headers", headers).
			Msg("http_request")
	}
}

// scrubHeaders flattens h for logging, hiding masked values entirely and
// redacting identifiers in the rest.
func scrubHeaders(h http.Header, masked map[string]bool) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if masked[strings.ToLower(name)] {
			out[name] = "[REDACTED]"
			continue
		}
		out[name] = Redact(strings.Join(values, ", "))
	}
	return out
}
