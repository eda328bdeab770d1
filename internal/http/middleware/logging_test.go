package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func serve(r *gin.Engine, path string, hdr ...string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/rid", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(requestIDKey))
	})

	cases := []struct {
		name, sent string
		kept       bool
	}{
		{"absent", "", false},
		{"client value", "abc-123", true},
		{"too long", strings.Repeat("x", maxRequestIDLen+1), false},
		{"control chars", "evil\tid", false},
		{"non ascii", "idé", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var w *httptest.ResponseRecorder
			if tc.sent == "" {
				w = serve(r, "/rid")
			} else {
				w = serve(r, "/rid", strings.ToLower(requestIDHeader), tc.sent)
			}
			got := w.Header().Get(requestIDHeader)
			if got == "" || got != w.Body.String() {
				t.Fatalf("header %q and context %q disagree", got, w.Body.String())
			}
			if (got == tc.sent) != tc.kept {
				t.Fatalf("sent %q, got %q; kept=%v", tc.sent, got, tc.kept)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}), Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late kaboom")
	})

	w := serve(r, "/panic", requestIDHeader, "rid-9")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	if body["code"] != "internal_error" || body["request_id"] != "rid-9" {
		t.Fatalf("unexpected body: %v", body)
	}
	out := buf.String()
	if !strings.Contains(out, `"panic":"kaboom"`) || !strings.Contains(out, `"request_id":"rid-9"`) || !strings.Contains(out, `"stack"`) {
		t.Fatalf("panic log lacks request fields or stack:\n%s", out)
	}

	// Once the body has started the JSON error cannot be sent.
	w = serve(r, "/late")
	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("error body appended after partial write: %q", w.Body.String())
	}
	if !strings.Contains(buf.String(), "late kaboom") {
		t.Fatalf("late panic not logged")
	}
}

func TestLoggerFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("fallback", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID())
		r.GET("/use", func(c *gin.Context) {
			LoggerFrom(c).Info().Msg("plain")
			c.Status(http.StatusOK)
		})
		serve(r, "/use")
		if !strings.Contains(buf.String(), `"message":"plain"`) || strings.Contains(buf.String(), `"request_id"`) {
			t.Fatalf("fallback logger output: %s", buf.String())
		}
	})

	t.Run("request scoped", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID(), RedactingLogger(RedactOptions{}))
		r.GET("/domains/:id/users", func(c *gin.Context) {
			LoggerFrom(c).Info().Msg("scoped")
			c.Status(http.StatusOK)
		})
		serve(r, "/domains/7/users", requestIDHeader, "rid-1")

		var first map[string]any
		line, _, _ := strings.Cut(buf.String(), "\n")
		if err := json.Unmarshal([]byte(line), &first); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		if first["message"] != "scoped" || first["request_id"] != "rid-1" ||
			first["path"] != "/domains/:id/users" || first["method"] != "GET" {
			t.Fatalf("scoped log fields: %v", first)
		}
	})
}
