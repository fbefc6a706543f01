// Package worker fans queued receipt messages out to the orchestrator.
package worker

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/mpalumbo7/receipt-parser/internal/orchestrator"
)

// Job is one raw queue delivery. Decoding happens on the worker goroutine so
// a malformed body poisons only its own delivery.
type Job struct {
	Body []byte
}

// Handler runs one decoded parse job. *orchestrator.Orchestrator satisfies it.
type Handler interface {
	Handle(ctx context.Context, msg orchestrator.Message) error
}

type Queue struct {
	handler Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithJobTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewQueue(handler Handler, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		handler: handler,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) run(workerID int, job Job) {
	msg, err := orchestrator.DecodeMessage(job.Body)
	if err != nil {
		q.logger.Error("dropping malformed message", "worker_id", workerID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	err = q.handler.Handle(ctx, msg)
	cancel()

	if err != nil {
		q.logger.Error("parse job failed", "worker_id", workerID, "receipt_id", msg.ReceiptID, "error", err)
	} else {
		q.logger.Info("parse job done", "worker_id", workerID, "receipt_id", msg.ReceiptID)
	}
}

func (q *Queue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down")
		return nil
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue full, applying backpressure")
		q.ch <- job
	}
	return nil
}

func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
