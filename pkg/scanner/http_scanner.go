package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
)

// Scan API verdicts
const (
	APIStatusOK    = "OK"
	APIStatusFound = "FOUND"
	APIStatusError = "ERROR"
)

// ScanResponse is the body returned by the scan API
type ScanResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HTTPScanner uploads files to a REST scan API (multipart POST /api/scan)
type HTTPScanner struct {
	apiURL string
	client *APIClient
	logger *logrus.Logger
}

// NewHTTPScanner reads the "api_url", "token", "verify_tls", "timeout",
// "max_retries" and "retry_backoff" options
func NewHTTPScanner(opts config.Options, logger *logrus.Logger) (*HTTPScanner, error) {
	apiURL := strings.TrimRight(opts.String("api_url", ""), "/")
	if apiURL == "" {
		return nil, fmt.Errorf("scan API URL is required")
	}
	parsed, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid scan API URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid scan API URL %q: an http or https URL with a host is required", apiURL)
	}

	client := NewAPIClient(
		opts.String("token", ""),
		!opts.Has("verify_tls") || opts.Bool("verify_tls"),
		opts.Duration("timeout", 30*time.Second),
		logger,
	)
	client.maxRetries = opts.Int("max_retries", 3)
	client.backoff = opts.Duration("retry_backoff", time.Second)

	return &HTTPScanner{apiURL: apiURL, client: client, logger: logger}, nil
}

// Executable reports whether the health endpoint answers 200
func (s *HTTPScanner) Executable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.client.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+HealthEndpoint, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		s.logger.WithError(err).WithField("api_url", s.apiURL).Debug("Scan API health check failed")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	return resp.StatusCode == http.StatusOK
}

func (s *HTTPScanner) RunScan(ctx context.Context, path string, errs *Errors) {
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		errs.Add(CodeFileNotFound)
		return
	}

	result, err := s.scanFile(ctx, path)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"path":    path,
			"api_url": s.apiURL,
			"error":   err.Error(),
		}).Error("Scan API request failed")
		errs.Add(CodeClientError)
		return
	}

	switch result.Status {
	case APIStatusOK:
	case APIStatusFound:
		s.logger.WithFields(logrus.Fields{
			"path":      path,
			"signature": result.Message,
		}).Info("Scan API detected a virus")
		errs.Add(CodeVirusDetected)
	default:
		s.logger.WithFields(logrus.Fields{
			"path":    path,
			"status":  result.Status,
			"message": result.Message,
		}).Error("Scan API returned an error")
		errs.Add(CodeClientError)
	}
}

// scanFile uploads path and decodes the verdict
func (s *HTTPScanner) scanFile(ctx context.Context, path string) (*ScanResponse, error) {
	resp, err := s.client.makeAPIRequest(ctx, http.MethodPost, s.apiURL+ScanEndpoint, multipartFile(path))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthenticationError{Message: fmt.Sprintf("scan API returned status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, NewAPIError(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result ScanResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode scan response: %w", err)
	}
	return &result, nil
}

// multipartFile streams path as the "file" field of a multipart body
func multipartFile(path string) requestBody {
	return func() (io.ReadCloser, string, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, "", err
		}

		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)

		go func() {
			defer f.Close()

			part, err := mw.CreateFormFile("file", filepath.Base(path))
			if err == nil {
				_, err = io.Copy(part, f)
			}
			if err == nil {
				err = mw.Close()
			}
			pw.CloseWithError(err)
		}()

		return pr, mw.FormDataContentType(), nil
	}
}
