package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CacheRevalidate lets clients keep directory pages but forces a conditional
// request each time, which the listing ETag answers with 304.
const CacheRevalidate = "private, no-cache"

const defaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityOptions selects the optional headers of SecurityHeaders.
//
// HSTS is only ever sent on HTTPS requests; a zero HSTSMaxAge means 180
// days. CacheControl, when set, goes on every response; "no-store" also adds
// the HTTP/1.0 Pragma and Expires companions. EnablePolicy adds
// Permissions-Policy, X-Permitted-Cross-Domain-Policies and a CSP that
// forbids any active content.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	CacheControl string
	EnablePolicy bool
}

// SecurityHeaders hardens JSON responses. nosniff, DENY framing and
// no-referrer are always set, and a response X-Request-ID is exposed to
// browser clients through Access-Control-Expose-Headers.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	static := [][2]string{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
	}
	if opt.EnablePolicy {
		static = append(static,
			[2]string{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()"},
			[2]string{"X-Permitted-Cross-Domain-Policies", "none"},
			[2]string{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
		)
	}
	if opt.CacheControl != "" {
		static = append(static, [2]string{"Cache-Control", opt.CacheControl})
		if strings.Contains(opt.CacheControl, "no-store") {
			static = append(static, [2]string{"Pragma", "no-cache"}, [2]string{"Expires", "0"})
		}
	}

	age := opt.HSTSMaxAge
	if age <= 0 {
		age = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.FormatInt(int64(age/time.Second), 10) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, kv := range static {
			h.Set(kv[0], kv[1])
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if h.Get(requestIDHeader) != "" {
			exposeHeader(h, requestIDHeader)
		}
		c.Next()
	}
}

// exposeHeader adds name to Access-Control-Expose-Headers unless listed.
func exposeHeader(h http.Header, name string) {
	const key = "Access-Control-Expose-Headers"
	cur := h.Get(key)
	for _, v := range strings.Split(cur, ",") {
		if strings.EqualFold(strings.TrimSpace(v), name) {
			return
		}
	}
	if cur == "" {
		h.Set(key, name)
		return
	}
	h.Set(key, cur+", "+name)
}

// isHTTPS reports TLS on the connection or X-Forwarded-Proto: https from a
// terminating proxy.
func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
