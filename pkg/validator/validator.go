// Package validator runs the pipeline against a record attribute and turns
// a positive verdict into error codes for the caller to report.
package validator

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/scanner"
	"github.com/sysdig/attachment-virus-scanner/pkg/storage"
)

// Backends supplies the active storage and scanner; *pipeline.Pipeline
// implements it
type Backends interface {
	Storage() (storage.Storage, error)
	Scanner() (*scanner.Scanner, error)
}

// AntivirusValidator checks attributes of records for viruses
type AntivirusValidator struct {
	backends Backends
	logger   *logrus.Logger
}

// New creates a validator reading its backends from backends
func New(backends Backends, logger *logrus.Logger) *AntivirusValidator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AntivirusValidator{backends: backends, logger: logger}
}

// ValidateEach scans the value of attribute with a background context
func (v *AntivirusValidator) ValidateEach(record storage.Record, attribute string) ([]scanner.ErrorCode, error) {
	return v.ValidateEachContext(context.Background(), record, attribute)
}

// ValidateEachContext returns the codes to report for attribute. Nothing is
// scanned when the storage does not accept the value, the attribute did not
// change or the scanner is unavailable. An infected verdict without codes
// reports CodeVirusDetected.
func (v *AntivirusValidator) ValidateEachContext(ctx context.Context, record storage.Record, attribute string) ([]scanner.ErrorCode, error) {
	value := record.Value(attribute)

	st, err := v.backends.Storage()
	if err != nil {
		return nil, err
	}
	if !st.Accept(value) || !st.Changed(record, attribute) {
		return nil, nil
	}

	s, err := v.backends.Scanner()
	if err != nil {
		return nil, err
	}
	if !s.Available() {
		v.logger.WithFields(logrus.Fields{
			"scanner_type": s.Type(),
			"attribute":    attribute,
		}).Warn("Scanner unavailable, attribute not scanned")
		return nil, nil
	}

	infected, err := s.VirusContext(ctx, value)
	if err != nil {
		return nil, err
	}
	if !infected {
		return nil, nil
	}

	codes := s.Errors()
	if len(codes) == 0 {
		codes = scanner.Errors{scanner.CodeVirusDetected}
	}

	v.logger.WithFields(logrus.Fields{
		"attribute": attribute,
		"errors":    codes.Strings(),
	}).Info("Attribute failed antivirus validation")

	return codes, nil
}

// Validate runs ValidateEach for every attribute and returns the codes of
// the attributes that failed. It stops at the first error.
func (v *AntivirusValidator) Validate(ctx context.Context, record storage.Record, attributes ...string) (map[string][]scanner.ErrorCode, error) {
	failed := make(map[string][]scanner.ErrorCode)
	for _, attribute := range attributes {
		codes, err := v.ValidateEachContext(ctx, record, attribute)
		if err != nil {
			return failed, err
		}
		if len(codes) > 0 {
			failed[attribute] = codes
		}
	}
	return failed, nil
}
