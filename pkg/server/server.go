// Package server exposes the scan pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/internal/models"
	"github.com/sysdig/attachment-virus-scanner/pkg/auth"
	"github.com/sysdig/attachment-virus-scanner/pkg/config"
	"github.com/sysdig/attachment-virus-scanner/pkg/queue"
	"github.com/sysdig/attachment-virus-scanner/pkg/resource"
)

// FormField is the multipart field carrying the files to scan
const FormField = "file"

// multipart parts above this size are spooled to disk
const maxMemory = 32 << 20

// Submitter runs a scan request and waits for its result
type Submitter interface {
	Submit(ctx context.Context, req *models.ScanRequest) (*models.ScanResult, error)
}

// Server represents the HTTP scan API
type Server struct {
	config     *config.Config
	router     *mux.Router
	httpServer *http.Server
	logger     *logrus.Logger
	scans      Submitter
	available  func() bool
	auth       *auth.Authenticator
	ready      atomic.Bool
}

// NewServer creates the scan API. available reports scanner availability
// for the readiness probe.
func NewServer(cfg *config.Config, scans Submitter, available func() bool, authenticator *auth.Authenticator, logger *logrus.Logger) *Server {
	s := &Server{
		config:    cfg,
		router:    mux.NewRouter(),
		logger:    logger,
		scans:     scans,
		available: available,
		auth:      authenticator,
	}

	s.setupRoutes()

	readTimeout, _ := cfg.ParseDuration(cfg.Server.ReadTimeout)
	writeTimeout, _ := cfg.ParseDuration(cfg.Server.WriteTimeout)

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        s.router,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return s
}

// setupRoutes configures HTTP routes and middleware
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	// The size limit wraps authentication; HMAC verification reads the body
	var scan http.Handler = http.HandlerFunc(s.handleScan)
	if s.auth != nil {
		scan = s.auth.Middleware(scan)
	}
	s.router.Handle("/scan", s.requestSizeLimitMiddleware(scan)).Methods(http.MethodPost)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.handleReadiness).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithFields(logrus.Fields{
		"port": s.config.Server.Port,
	}).Info("Starting HTTP server")

	s.ready.Store(true)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	s.ready.Store(false)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// SetReady sets the readiness status
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// handleScan scans the files of a multipart upload
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart body: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[FormField]
	if len(headers) == 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("no %q parts in request", FormField))
		return
	}

	streams, err := openStreams(headers)
	defer func() {
		for _, stream := range streams {
			stream.Discard()
		}
	}()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := &models.ScanRequest{
		RequestID:  uuid.NewString(),
		Resource:   streams,
		ReceivedAt: time.Now(),
	}
	for _, stream := range streams {
		req.Filenames = append(req.Filenames, stream.Name)
	}

	result, err := s.scans.Submit(r.Context(), req)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"request_id": req.RequestID,
			"error":      err.Error(),
		}).Warn("Scan request rejected")

		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrQueueClosed) {
			w.Header().Set("Retry-After", "5")
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, statusCode(result.Status), result)
}

func openStreams(headers []*multipart.FileHeader) ([]*resource.Stream, error) {
	streams := make([]*resource.Stream, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return streams, fmt.Errorf("open part %s: %w", header.Filename, err)
		}
		streams = append(streams, resource.NewStream(header.Filename, file))
	}
	return streams, nil
}

func statusCode(status models.ScanStatus) int {
	switch status {
	case models.ScanStatusClean, models.ScanStatusInfected:
		return http.StatusOK
	case models.ScanStatusUnavailable:
		return http.StatusServiceUnavailable
	case models.ScanStatusTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// handleHealth returns the health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReadiness reports ready once the server runs and the scanner is available
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	if s.available != nil && !s.available() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "scanner unavailable"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Debug("Failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}

// loggingMiddleware logs all HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
			"status_code": rw.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("HTTP request")
	})
}

// requestSizeLimitMiddleware enforces maximum request size
func (s *Server) requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxRequestSize)
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
