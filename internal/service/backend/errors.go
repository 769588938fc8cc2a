package backend

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when the backend answers 2xx with no usable body.
var ErrEmptyResponse = errors.New("backend: empty response")

// APIError represents a non-success response from the bookkeeping backend.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the human-readable message from the response body, if any.
	Message string

	// Endpoint is the path that was called.
	Endpoint string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}
