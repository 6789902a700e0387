package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/wine-ingest/internal/entity"
)

// FileProcessor is the pipeline entry point the workers call.
type FileProcessor interface {
	ProcessFile(ctx context.Context, content []byte, fileName, declaredExt, correlationID string) entity.PipelineResult
}

// ResultHandler receives every finished job. It is called from worker goroutines.
type ResultHandler func(ctx context.Context, job Job, res entity.PipelineResult)

// ProcessorQueue runs pipeline invocations on a fixed set of workers.
type ProcessorQueue struct {
	proc    FileProcessor
	handle  ResultHandler
	logger  *slog.Logger
	workers int
	timeout time.Duration
	baseCtx context.Context

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
		q.handle = h
	}
}

// WithBaseContext makes every invocation inherit ctx, so canceling it aborts
// in-flight files.
func WithBaseContext(ctx context.Context) Option {
	return func(q *ProcessorQueue) {
		if ctx != nil {
			q.baseCtx = ctx
		}
	}
}

func NewProcessorQueue(proc FileProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		baseCtx: context.Background(),
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
				q.logger.Debug("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					q.process(workerID, job)
				}

				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) process(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(q.baseCtx, q.timeout)
	defer cancel()

	res := q.proc.ProcessFile(ctx, job.Content, job.FileName, job.Ext, job.CorrelationID)
	if res.Saved() {
		q.logger.Info("queue.job.saved",
			"worker_id", workerID, "job_id", job.ID, "file_name", job.FileName,
			"stage", res.StageUsed, "records", len(res.Records),
			"waited_ms", time.Since(job.SubmittedAt).Milliseconds())
	} else {
		q.logger.Warn("queue.job.failed",
			"worker_id", workerID, "job_id", job.ID, "file_name", job.FileName,
			"error_kind", res.ErrorKind, "error", res.Error)
	}
	if q.handle != nil {
		q.handle(ctx, job, res)
	}
}

// Enqueue hands a job to the workers, blocking while the buffer is full.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CorrelationID == "" {
		job.CorrelationID = job.ID.String()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "file_name", job.FileName)
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queue.enqueue.ok", "job_id", job.ID, "file_name", job.FileName)
	default:
		q.logger.Warn("queue.enqueue.backpressure", "job_id", job.ID, "file_name", job.FileName)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Shutdown stops accepting jobs and waits for the queued ones to finish, or for ctx.
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
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
