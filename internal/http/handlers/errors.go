package handlers

// Error codes of the API's error body. Generic codes mirror the HTTP status;
// rate_limited and internal_error are also written by the middleware chain.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"

	ErrCodeListFailed  = "list_failed"
	ErrCodeStatsFailed = "stats_failed"
)
