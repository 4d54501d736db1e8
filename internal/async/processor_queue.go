package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/kitchenledger/invoice-pipeline/internal/common"
	"github.com/kitchenledger/invoice-pipeline/internal/pipeline"
)

// ResultHandler receives the outcome of each processed job. Handlers run on
// worker goroutines and must be safe for concurrent use.
type ResultHandler func(job Job, res *pipeline.Result, err error)

// ProcessorQueue fans invoice jobs across a worker pool. Invoices are
// independent units of work with no ordering requirement between them.
type ProcessorQueue struct {
	proc    *pipeline.Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration
	onDone  ResultHandler
	base    context.Context

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}
func WithResultHandler(h ResultHandler) Option {
	return func(q *ProcessorQueue) {
		q.onDone = h
	}
}

// WithBaseContext sets the parent context workers derive per-job contexts
// from; batch-scoped values like the batch run ID propagate through it.
func WithBaseContext(ctx context.Context) Option {
	return func(q *ProcessorQueue) {
		if ctx != nil {
			q.base = ctx
		}
	}
}

func NewProcessorQueue(proc *pipeline.Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: time.Minute,
		base:    context.Background(),
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := common.WithTimeout(q.base, q.timeout)
					ctx = common.WithRequestID(ctx, job.ID.String())
					res, err := q.proc.Process(ctx, job.Invoice)
					cancel()

					batchID := common.BatchIDFromContext(ctx)
					if err != nil {
						q.logger.Error("processing failed",
							"worker_id", workerID,
							"job_id", job.ID,
							"batch_id", batchID,
							"invoice_number", job.Invoice.InvoiceNumber,
							"source", job.SourcePath,
							"error", err)
					} else {
						q.logger.Info("processed invoice",
							"worker_id", workerID,
							"job_id", job.ID,
							"batch_id", batchID,
							"invoice_number", job.Invoice.InvoiceNumber,
							"is_valid", res.Parsed.Validation.IsValid,
							"layers", len(res.Layers))
					}
					if q.onDone != nil {
						q.onDone(job, res, err)
					}
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", job.ID)
		return nil
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue full, applying backpressure", "job_id", job.ID)
		q.ch <- job
	}
	return nil
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
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
	case <-done:
	case <-ctx.Done():
		q.logger.Warn("shutdown timed out before workers drained")
	}
}
