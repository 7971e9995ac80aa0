package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/internal/models"
	"github.com/sysdig/attachment-virus-scanner/pkg/logging"
	"github.com/sysdig/attachment-virus-scanner/pkg/scanner"
	"github.com/sysdig/attachment-virus-scanner/pkg/storage"
)

// Backends supplies the active scanner and storage
type Backends interface {
	Scanner() (*scanner.Scanner, error)
	Storage() (storage.Storage, error)
}

// ScanService runs scan requests against a pipeline. Handle must only be
// called from the scan worker; Available is safe from any goroutine.
type ScanService struct {
	backends  Backends
	logger    *logrus.Logger
	available atomic.Bool
}

// NewScanService probes the scanner once and returns a service for backends.
// Call it before the worker starts.
func NewScanService(backends Backends, logger *logrus.Logger) (*ScanService, error) {
	s := &ScanService{backends: backends, logger: logger}

	sc, err := backends.Scanner()
	if err != nil {
		return nil, err
	}
	if _, err := backends.Storage(); err != nil {
		return nil, err
	}
	s.available.Store(sc.Available())

	return s, nil
}

// Available reports the scanner availability seen by the last scan
func (s *ScanService) Available() bool {
	return s.available.Load()
}

// Handle scans req.Resource and reports the verdict
func (s *ScanService) Handle(ctx context.Context, req *models.ScanRequest) *models.ScanResult {
	result := &models.ScanResult{
		RequestID: req.RequestID,
		Files:     req.Filenames,
		StartedAt: time.Now(),
	}
	logger := logging.LogWithRequestID(s.logger, req.RequestID)

	sc, err := s.backends.Scanner()
	if err != nil {
		logger.WithError(err).Error("Failed to get scanner")
		return s.fail(result, err)
	}
	result.ScannerType = sc.Type()

	available := sc.Available()
	s.available.Store(available)
	if !available {
		logger.WithField("scanner_type", sc.Type()).Warn("Scanner unavailable, request not scanned")
		result.Status = models.ScanStatusUnavailable
		result.Error = "scanner unavailable"
		return s.finish(result)
	}

	infected, err := sc.VirusContext(ctx, req.Resource)
	result.Infected = infected
	result.Errors = sc.Errors().Strings()

	if err != nil {
		logger.WithError(err).Error("Scan failed")
		return s.fail(result, err)
	}

	result.Status = models.ScanStatusClean
	if infected {
		result.Status = models.ScanStatusInfected
	}

	logger.WithFields(logrus.Fields{
		"scanner_type": sc.Type(),
		"files":        req.Filenames,
		"status":       result.Status,
		"errors":       result.Errors,
	}).Info("Scan request completed")

	return s.finish(result)
}

func (s *ScanService) fail(result *models.ScanResult, err error) *models.ScanResult {
	result.Status = models.ScanStatusFailed
	result.Error = err.Error()
	return s.finish(result)
}

func (s *ScanService) finish(result *models.ScanResult) *models.ScanResult {
	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	return result
}
