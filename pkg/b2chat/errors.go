package b2chat

import (
	"fmt"
	"net/http"
)

// StatusInvalidEnvelope is the synthetic status used when the export
// response body itself cannot be decoded.
const StatusInvalidEnvelope = http.StatusUnprocessableEntity

// APIError describes a failed B2Chat API call with enough context to decide
// whether the caller should retry. The client itself never retries.
type APIError struct {
	StatusCode int
	Body       string
	Endpoint   string
	URL        string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("b2chat %s (status %d): %s: %v",
			e.Endpoint, e.StatusCode, e.FriendlyMessage(), e.Err)
	}
	return fmt.Sprintf("b2chat %s (status %d): %s",
		e.Endpoint, e.StatusCode, e.FriendlyMessage())
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the failure is transient and worth retrying.
func (e *APIError) IsRetryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// IsAuthenticationError reports whether the failure was a credential problem.
func (e *APIError) IsAuthenticationError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// FriendlyMessage returns a human-readable description per status bucket.
func (e *APIError) FriendlyMessage() string {
	switch {
	case e.IsAuthenticationError():
		return "authentication with B2Chat failed - check credentials"
	case e.StatusCode == http.StatusTooManyRequests:
		return "B2Chat rate limit exceeded"
	case e.StatusCode == StatusInvalidEnvelope:
		return "B2Chat returned an unexpected response shape"
	case e.StatusCode >= 500:
		return "B2Chat service error"
	default:
		return "B2Chat request failed"
	}
}

// RecordError is a per-record parse or validation failure on an export page,
// correlated back to the record's index in the raw response array.
type RecordError struct {
	Index int
	Err   error
}

// Error implements the error interface.
func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e RecordError) Unwrap() error {
	return e.Err
}
