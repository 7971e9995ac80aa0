package scanner

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/metrics"
)

// API constants
const (
	ScanEndpoint   = "/api/scan"
	HealthEndpoint = "/api/health"

	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderRetryAfter    = "Retry-After"
)

// requestBody builds a fresh request body for every attempt. The client
// closes the body on every path, including failed sends.
type requestBody func() (body io.ReadCloser, contentType string, err error)

// APIClient wraps HTTP client with retry logic and authentication
type APIClient struct {
	httpClient *http.Client
	logger     *logrus.Logger
	token      string
	maxRetries int
	backoff    time.Duration
}

// NewAPIClient creates a new API client with retry support
func NewAPIClient(token string, verifyTLS bool, timeout time.Duration, logger *logrus.Logger) *APIClient {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !verifyTLS, //nolint:gosec
		},
	}

	if !verifyTLS {
		logger.Warn("TLS verification disabled for scan API - this is insecure!")
	}

	return &APIClient{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger:     logger,
		token:      token,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// makeAPIRequest sends an HTTP request with authentication and retry logic
func (c *APIClient) makeAPIRequest(ctx context.Context, method, url string, newBody requestBody) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			backoff := c.backoff * time.Duration(1<<uint(attempt-1))
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"backoff": backoff,
			}).Debug("Retrying API request")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		// The request is built before the body so a bad URL never leaves
		// a body writer running
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		if newBody != nil {
			body, contentType, err := newBody()
			if err != nil {
				return nil, fmt.Errorf("failed to build request body: %w", err)
			}
			// Do closes the body, even on errors
			req.Body = body
			req.Header.Set(HeaderContentType, contentType)
		}

		if c.token != "" {
			req.Header.Set(HeaderAuthorization, "Bearer "+c.token)
		}

		c.logger.WithFields(logrus.Fields{
			"method":  method,
			"url":     url,
			"token":   sanitizeToken(c.token),
			"attempt": attempt + 1,
		}).Debug("Sending API request")

		startTime := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(startTime).Seconds()

		if err != nil {
			metrics.RecordScannerAPIError("network_error", 0)
			lastErr = &NetworkError{Operation: method + " " + getEndpointName(url), Err: err}
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		endpoint := getEndpointName(url)
		metrics.RecordScannerAPIDuration(endpoint, resp.StatusCode, duration)

		if isRetriableStatusCode(resp.StatusCode) && attempt < c.maxRetries {
			metrics.RecordScannerAPIError("retriable_status", resp.StatusCode)

			// Handle rate limiting
			if resp.StatusCode == http.StatusTooManyRequests {
				retryAfter := getRetryAfter(resp)
				c.logger.WithFields(logrus.Fields{
					"retry_after": retryAfter,
				}).Warn("Rate limited by API")

				select {
				case <-time.After(retryAfter):
				case <-ctx.Done():
					resp.Body.Close()
					return nil, ctx.Err()
				}
			}

			io.Copy(io.Discard, resp.Body) //nolint:errcheck
			resp.Body.Close()
			lastErr = NewAPIError(resp.StatusCode, "retriable status code")
			continue
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			metrics.RecordScannerAPIError("client_error", resp.StatusCode)
		}

		// Success or non-retriable error
		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// getRetryAfter extracts the Retry-After header value
func getRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get(HeaderRetryAfter)
	if retryAfter == "" {
		return 5 * time.Second
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
		return 0
	}

	return 5 * time.Second
}

// sanitizeToken returns a sanitized version of the token for logging
func sanitizeToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:2] + "***" + token[len(token)-2:]
}

// getEndpointName extracts a simplified endpoint name from URL for metrics
func getEndpointName(url string) string {
	if strings.Contains(url, HealthEndpoint) {
		return "health"
	}
	if strings.Contains(url, ScanEndpoint) {
		return "scan"
	}
	return "unknown"
}
