package client

import (
	"encoding/json"
	"fmt"
)

// APIError represents a structured error response from the Veritail API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`

	// Body holds the raw response body for callers that need payloads the
	// standard error shape does not cover (e.g. conflict records).
	Body []byte `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("veritail: %d %s: %s (request_id=%s)", e.StatusCode, e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("veritail: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound returns true if the error is a 404 not found.
func IsNotFound(err error) bool {
	if e, ok := err.(*APIError); ok {
		return e.StatusCode == 404
	}
	return false
}

// IsRateLimited returns true if the error is a 429 rate limit.
func IsRateLimited(err error) bool {
	if e, ok := err.(*APIError); ok {
		return e.StatusCode == 429
	}
	return false
}

// IsVerificationRunning returns true if a verification run was rejected
// because another one is in flight.
func IsVerificationRunning(err error) bool {
	if e, ok := err.(*APIError); ok {
		return e.StatusCode == 409 && e.Code == "verification_running"
	}
	return false
}

// ConflictError is returned by Commit when the server rejected the write as
// conflicting. The embedded record carries the per-field diff needed to merge.
type ConflictError struct {
	Conflict *ConflictRecord
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.Conflict == nil {
		return "veritail: write conflicts with server state"
	}
	return fmt.Sprintf("veritail: write conflicts with server version %d (%d conflicted fields)",
		e.Conflict.ServerVersion, len(e.Conflict.FieldConflicts))
}

// AsConflict unwraps a ConflictError, returning its record and true when err
// is one.
func AsConflict(err error) (*ConflictRecord, bool) {
	if e, ok := err.(*ConflictError); ok {
		return e.Conflict, true
	}
	return nil, false
}

// parseAPIError attempts to decode a JSON error body; falls back to raw text.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Body: body}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = "unknown"
		apiErr.Message = string(body)
	}
	return apiErr
}
