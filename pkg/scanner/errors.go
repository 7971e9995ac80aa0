package scanner

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrScanInProgress is returned when Virus is called from inside a running scan
var ErrScanInProgress = errors.New("scan already in progress on this scanner")

// APIError represents an error response from the scan API
type APIError struct {
	StatusCode int
	Message    string
	Retriable  bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// IsRetriable returns true if this error should be retried
func (e *APIError) IsRetriable() bool {
	return e.Retriable
}

// AuthenticationError represents a rejected API token
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// NetworkError represents a network connectivity error
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new API error with retriability determination
func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
		Retriable:  isRetriableStatusCode(statusCode),
	}
}

// IsRetriableError checks if an error should be retried
func IsRetriableError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetriable()
	}

	// Network errors are generally retriable
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}

	return false
}

// isRetriableStatusCode returns true for HTTP status codes that should be retried
func isRetriableStatusCode(code int) bool {
	switch code {
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
