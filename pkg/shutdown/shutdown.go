// Package shutdown runs cleanup handlers when the service stops.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/pkg/logging"
)

// Handler performs cleanup during shutdown
type Handler func(ctx context.Context) error

type namedHandler struct {
	name string
	fn   Handler
}

// Manager runs registered handlers in registration order once a shutdown
// is triggered. Handlers share one deadline.
type Manager struct {
	logger   *logrus.Logger
	timeout  time.Duration
	signals  chan os.Signal
	handlers []namedHandler

	mu             sync.Mutex
	isShuttingDown bool
}

// NewManager creates a shutdown manager whose handlers must finish within timeout
func NewManager(timeout time.Duration, logger *logrus.Logger) *Manager {
	return &Manager{
		logger:  logger,
		timeout: timeout,
		signals: make(chan os.Signal, 1),
	}
}

// RegisterHandler appends a named handler. The HTTP server should be
// registered before the scan worker so no job arrives after the worker stops.
func (m *Manager) RegisterHandler(name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, namedHandler{name: name, fn: handler})
}

// WaitForShutdown blocks until SIGTERM or SIGINT arrives, then runs Shutdown
func (m *Manager) WaitForShutdown() error {
	signal.Notify(m.signals, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(m.signals)

	sig := <-m.signals
	logging.LogShutdownInitiated(m.logger, sig.String())

	return m.Shutdown()
}

// Trigger starts a shutdown as if SIGTERM had arrived
func (m *Manager) Trigger() {
	select {
	case m.signals <- syscall.SIGTERM:
	default:
	}
}

// Shutdown runs every handler once. Later calls return nil immediately.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.isShuttingDown {
		m.mu.Unlock()
		return nil
	}
	m.isShuttingDown = true
	handlers := append([]namedHandler(nil), m.handlers...)
	m.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var errs []error
	for _, h := range handlers {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: skipped: %w", h.name, ctx.Err()))
			continue
		}

		handlerStart := time.Now()
		if err := h.fn(ctx); err != nil {
			m.logger.WithFields(logrus.Fields{
				"handler":  h.name,
				"duration": time.Since(handlerStart).Seconds(),
				"error":    err.Error(),
			}).Error("Shutdown handler failed")
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}

		m.logger.WithFields(logrus.Fields{
			"handler":  h.name,
			"duration": time.Since(handlerStart).Seconds(),
		}).Debug("Shutdown handler completed")
	}

	err := errors.Join(errs...)
	if err != nil {
		m.logger.WithFields(logrus.Fields{
			"event":            "shutdown_complete",
			"duration_seconds": time.Since(start).Seconds(),
		}).WithError(err).Warn("Shutdown completed with errors")
	} else {
		logging.LogShutdownComplete(m.logger, time.Since(start).Seconds())
	}

	return err
}

// IsShuttingDown reports whether Shutdown has started
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isShuttingDown
}
