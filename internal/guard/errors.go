package guard

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Error codes used in the API error envelope.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL_ERROR"
)

// APIError is the standard error envelope:
// {"success": false, "error": {"code", "message", "details"}}.
type APIError struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail is the error body of an APIError.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewAPIError builds an envelope.
func NewAPIError(code, message string, details map[string]interface{}) APIError {
	return APIError{Error: ErrorDetail{Code: code, Message: message, Details: details}}
}

// WriteError writes an APIError with the given status.
func WriteError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewAPIError(code, message, details))
}

// RetryAfterSeconds rounds d up to whole seconds, at least 1.
func RetryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

// writeRateLimited writes a 429 with a Retry-After header and retry_after detail.
func writeRateLimited(w http.ResponseWriter, d Decision) {
	secs := RetryAfterSeconds(d.RetryAfter)
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteError(w, http.StatusTooManyRequests, CodeRateLimited, ErrRateLimited.Error(), map[string]interface{}{
		"retry_after": secs,
		"limit":       d.Limit,
		"reset_at":    d.ResetAt.UTC().Format(time.RFC3339),
	})
}
