package models

import (
	"time"
)

// ScanRequest is a resource submitted for scanning
type ScanRequest struct {
	// Request ID for tracing
	RequestID string

	// Resource handed to the scanner, e.g. a path list or []*resource.Stream
	Resource interface{}

	// Names of the submitted files, for logging and the result
	Filenames []string

	ReceivedAt time.Time
	QueuedAt   time.Time
}

// ScanResult is the outcome of a scan request
type ScanResult struct {
	RequestID string     `json:"request_id"`
	Status    ScanStatus `json:"status"`
	Infected  bool       `json:"infected"`
	Errors    []string   `json:"errors,omitempty"`
	Files     []string   `json:"files,omitempty"`

	ScannerType string `json:"scanner_type,omitempty"`

	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration_ns"`

	// Error is set when the scan did not complete
	Error string `json:"error,omitempty"`
}

// ScanStatus represents the outcome of a scan
type ScanStatus string

const (
	ScanStatusClean       ScanStatus = "clean"
	ScanStatusInfected    ScanStatus = "infected"
	ScanStatusUnavailable ScanStatus = "unavailable"
	ScanStatusFailed      ScanStatus = "failed"
	ScanStatusTimeout     ScanStatus = "timeout"
)

// IsError returns true if the scan produced no verdict
func (s ScanStatus) IsError() bool {
	return s == ScanStatusUnavailable || s == ScanStatusFailed || s == ScanStatusTimeout
}
