package backend

import (
	"errors"
	"fmt"
)

// Sentinel configuration failures. Use errors.Is against a *ConfigurationError.
var (
	ErrInvalidInput  = errors.New("invalid backend specification")
	ErrNotConfigured = errors.New("backend not configured")
	ErrNotFound      = errors.New("unknown backend type")
)

// ConfigurationError represents a backend configuration failure. These are
// deployment errors and are never folded into a scan verdict.
type ConfigurationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func invalidInput(kind Kind, format string, args ...interface{}) error {
	return &ConfigurationError{Field: string(kind), Message: fmt.Sprintf(format, args...), Err: ErrInvalidInput}
}

func notConfigured(kind Kind) error {
	return &ConfigurationError{Field: string(kind), Message: fmt.Sprintf("%s not defined", kind), Err: ErrNotConfigured}
}

func notFound(kind Kind, name string) error {
	return &ConfigurationError{Field: string(kind), Message: fmt.Sprintf("unknown %s type: %s", kind, name), Err: ErrNotFound}
}

// NewNotFoundError reports an unknown name of kind
func NewNotFoundError(kind Kind, name string) error {
	return notFound(kind, name)
}

// NewNotConfiguredError reports a kind that was never configured
func NewNotConfiguredError(kind Kind) error {
	return notConfigured(kind)
}
