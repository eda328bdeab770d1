// Package handlers implements the read-only directory endpoints and the
// response envelope they share.
//
// Every failure is answered with ErrorResponse:
//
//	HTTP/1.1 404 Not Found
//	{"request_id": "123e4567-e89b-12d3-a456-426614174000", "code": "not_found", "message": "domain not found"}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/entra-ingest/internal/http/middleware"
)

// ErrorResponse is the body of every non-2xx answer. Message is safe to show
// to users; causes stay in the server log.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// fail aborts with an ErrorResponse. Server errors are logged with the
// request-scoped logger and every cause recorded through c.Error.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().Int("status", status).Str("code", code)
		if causes := c.Errors.ByType(gin.ErrorTypeAny); len(causes) > 0 {
			errs := make([]error, len(causes))
			for i, e := range causes {
				errs[i] = e.Err
			}
			ev = ev.Err(errors.Join(errs...))
		}
		ev.Msg(msg)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
