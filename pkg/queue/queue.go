package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/sysdig/attachment-virus-scanner/internal/models"
	"github.com/sysdig/attachment-virus-scanner/pkg/metrics"
)

var (
	// ErrQueueClosed is returned once Close has been called
	ErrQueueClosed = errors.New("queue is closed")
	// ErrQueueFull is returned when the buffer has no room left
	ErrQueueFull = errors.New("queue is full")
)

// Job is a queued scan request waiting for its result
type Job struct {
	Request *models.ScanRequest
	reply   chan *models.ScanResult
}

func newJob(req *models.ScanRequest) *Job {
	return &Job{Request: req, reply: make(chan *models.ScanResult, 1)}
}

// Wait blocks until the worker delivered the result or ctx is done
func (j *Job) Wait(ctx context.Context) (*models.ScanResult, error) {
	select {
	case result := <-j.reply:
		return result, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for scan result: %w", ctx.Err())
	}
}

func (j *Job) complete(result *models.ScanResult) {
	select {
	case j.reply <- result:
	default:
	}
}

// ScanQueue is a bounded FIFO of scan jobs
type ScanQueue struct {
	queue    chan *Job
	capacity int
	depth    int64 // atomic
	logger   *logrus.Logger
	mu       sync.RWMutex
	closed   bool
}

// NewScanQueue creates a scan queue holding up to capacity jobs
func NewScanQueue(capacity int, logger *logrus.Logger) *ScanQueue {
	return &ScanQueue{
		queue:    make(chan *Job, capacity),
		capacity: capacity,
		logger:   logger,
	}
}

// Enqueue adds req to the queue without blocking
func (q *ScanQueue) Enqueue(ctx context.Context, req *models.ScanRequest) (*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	job := newJob(req)

	select {
	case q.queue <- job:
		depth := atomic.AddInt64(&q.depth, 1)
		metrics.SetQueueDepth(int(depth))
		q.logger.WithFields(logrus.Fields{
			"request_id":  req.RequestID,
			"files":       len(req.Filenames),
			"queue_depth": depth,
		}).Debug("Scan request enqueued")
		return job, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("enqueue cancelled: %w", ctx.Err())
	default:
		return nil, fmt.Errorf("%w (capacity: %d)", ErrQueueFull, q.capacity)
	}
}

// Dequeue removes the oldest job, blocking until one is available
func (q *ScanQueue) Dequeue(ctx context.Context) (*Job, error) {
	select {
	case job, ok := <-q.queue:
		if !ok {
			return nil, ErrQueueClosed
		}
		metrics.SetQueueDepth(int(atomic.AddInt64(&q.depth, -1)))
		return job, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("dequeue cancelled: %w", ctx.Err())
	}
}

// Depth returns the number of queued jobs
func (q *ScanQueue) Depth() int {
	return int(atomic.LoadInt64(&q.depth))
}

// Capacity returns the maximum number of queued jobs
func (q *ScanQueue) Capacity() int {
	return q.capacity
}

// Close stops accepting jobs. Queued jobs can still be dequeued.
func (q *ScanQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.queue)
		q.logger.Info("Scan queue closed")
	}
}

// IsClosed returns true if the queue has been closed
func (q *ScanQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Stats returns queue statistics
func (q *ScanQueue) Stats() QueueStats {
	depth := q.Depth()
	stats := QueueStats{
		Depth:    depth,
		Capacity: q.capacity,
		IsFull:   depth >= q.capacity,
		IsEmpty:  depth == 0,
	}
	if q.capacity > 0 {
		stats.Utilization = float64(depth) / float64(q.capacity) * 100
	}
	return stats
}

// QueueStats represents queue statistics
type QueueStats struct {
	Depth       int     `json:"depth"`
	Capacity    int     `json:"capacity"`
	Utilization float64 `json:"utilization"` // Percentage (0-100)
	IsFull      bool    `json:"is_full"`
	IsEmpty     bool    `json:"is_empty"`
}
