// Package queue serializes scan requests through a bounded queue and a
// single worker goroutine. Scanners run one scan at a time, so every scan
// of a pipeline goes through one Worker.
package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/internal/models"
)

// ScanHandler processes a scan request and returns its result
type ScanHandler func(ctx context.Context, req *models.ScanRequest) *models.ScanResult

// Worker takes jobs off a ScanQueue one at a time
type Worker struct {
	queue      *ScanQueue
	handler    ScanHandler
	jobTimeout time.Duration
	logger     *logrus.Logger

	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	inFlight int64 // atomic
}

// NewWorker creates a worker. Each job runs with jobTimeout as its deadline.
func NewWorker(queue *ScanQueue, handler ScanHandler, jobTimeout time.Duration, logger *logrus.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		queue:      queue,
		handler:    handler,
		jobTimeout: jobTimeout,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the worker goroutine
func (w *Worker) Start() {
	w.logger.WithFields(logrus.Fields{
		"queue_capacity": w.queue.Capacity(),
		"job_timeout":    w.jobTimeout.String(),
	}).Info("Starting scan worker")

	w.wg.Add(1)
	go w.run()
}

// Submit enqueues req and waits for its result
func (w *Worker) Submit(ctx context.Context, req *models.ScanRequest) (*models.ScanResult, error) {
	req.QueuedAt = time.Now()

	job, err := w.queue.Enqueue(ctx, req)
	if err != nil {
		return nil, err
	}
	return job.Wait(ctx)
}

// Stop closes the queue and waits for the running job to finish. Jobs
// still queued are answered with a failed result.
func (w *Worker) Stop(timeout time.Duration) error {
	var stopErr error

	w.stopOnce.Do(func() {
		w.logger.Info("Stopping scan worker")

		w.queue.Close()
		w.cancel()

		done := make(chan struct{})
		go func() {
			w.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			w.logger.Info("Scan worker stopped")
		case <-time.After(timeout):
			stopErr = fmt.Errorf("scan worker shutdown timeout after %v", timeout)
			w.logger.Warn("Scan worker shutdown timeout, a scan may still be running")
		}
	})

	return stopErr
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		job, err := w.queue.Dequeue(w.ctx)
		if err != nil {
			if w.ctx.Err() != nil {
				w.drain()
			}
			w.logger.WithError(err).Debug("Scan worker exiting")
			return
		}

		w.process(job)
	}
}

// drain answers jobs left in a closed queue
func (w *Worker) drain() {
	for {
		job, err := w.queue.Dequeue(context.Background())
		if err != nil {
			return
		}
		job.complete(&models.ScanResult{
			RequestID:   job.Request.RequestID,
			Status:      models.ScanStatusFailed,
			Files:       job.Request.Filenames,
			CompletedAt: time.Now(),
			Error:       "scan worker stopped",
		})
	}
}

// process runs one job with panic recovery and always replies
func (w *Worker) process(job *Job) {
	req := job.Request
	logger := w.logger.WithField("request_id", req.RequestID)

	atomic.AddInt64(&w.inFlight, 1)
	defer atomic.AddInt64(&w.inFlight, -1)

	started := time.Now()
	var result *models.ScanResult

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Scan worker panic recovered")
			result = &models.ScanResult{
				RequestID: req.RequestID,
				Status:    models.ScanStatusFailed,
				Files:     req.Filenames,
				StartedAt: started,
				Error:     fmt.Sprintf("scan panicked: %v", r),
			}
		}
		if result == nil {
			result = &models.ScanResult{RequestID: req.RequestID, Status: models.ScanStatusFailed, Error: "no scan result"}
		}
		if result.CompletedAt.IsZero() {
			result.CompletedAt = time.Now()
			result.Duration = result.CompletedAt.Sub(started)
		}
		job.complete(result)
	}()

	logger.WithFields(logrus.Fields{
		"files":   req.Filenames,
		"wait_ms": started.Sub(req.QueuedAt).Milliseconds(),
	}).Debug("Processing scan request")

	ctx, cancel := context.WithTimeout(context.Background(), w.jobTimeout)
	defer cancel()

	result = w.handler(ctx, req)
	if result != nil && ctx.Err() == context.DeadlineExceeded && result.Status.IsError() {
		result.Status = models.ScanStatusTimeout
	}
}

// Stats returns worker statistics
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		InFlight:   int(atomic.LoadInt64(&w.inFlight)),
		QueueDepth: w.queue.Depth(),
	}
}

// WorkerStats represents worker statistics
type WorkerStats struct {
	InFlight   int `json:"in_flight"`
	QueueDepth int `json:"queue_depth"`
}
