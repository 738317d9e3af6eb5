/**
 * @description
 * The worker runner that drives a queue: it reserves due jobs, invokes the
 * stage handler, and maps the handler's verdict back onto queue transitions.
 * Retry-later and fatal verdicts are indistinguishable at the queue layer:
 * both redeliver after the fixed backoff until attempts run out. They only
 * differ in how loudly they are logged.
 */
package queue

import (
	"context"
	"log/slog"
	"time"
)

// Disposition is a stage handler's verdict on one job delivery.
type Disposition int

const (
	// Advance: the stage is done, the job is removed.
	Advance Disposition = iota
	// RetryLater: a not-yet domain signal; redeliver after the backoff.
	RetryLater
	// Fatal: an unexpected error; logged at error level, then redelivered
	// like any other failure.
	Fatal
)

// Handler processes one job delivery.
type Handler func(ctx context.Context, job Job) (Disposition, error)

// jobSource is the slice of Queue the runner needs; narrowed for tests.
type jobSource interface {
	Name() string
	Reserve(ctx context.Context, n int) ([]Job, error)
	Complete(ctx context.Context, jobID string) error
	Retry(ctx context.Context, job Job) (bool, error)
}

// Worker pulls jobs from one queue and hands them to a Handler with bounded
// concurrency.
type Worker struct {
	source      jobSource
	handler     Handler
	concurrency int
	pollEvery   time.Duration
	logger      *slog.Logger
}

// NewWorker returns a worker for the given queue and handler. Concurrency
// bounds how many jobs are processed at once.
func NewWorker(q *Queue, handler Handler, concurrency int, logger *slog.Logger) *Worker {
	return newWorker(q, handler, concurrency, logger)
}

func newWorker(source jobSource, handler Handler, concurrency int, logger *slog.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{
		source:      source,
		handler:     handler,
		concurrency: concurrency,
		pollEvery:   time.Second,
		logger:      logger,
	}
}

// Run polls the queue until ctx is cancelled, then drains in-flight jobs.
func (w *Worker) Run(ctx context.Context) {
	sem := make(chan struct{}, w.concurrency)
	ticker := time.NewTicker(w.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Drain: wait for in-flight handlers to release their slots.
			for i := 0; i < w.concurrency; i++ {
				sem <- struct{}{}
			}
			w.logger.Info("worker stopped", "queue", w.source.Name())
			return
		case <-ticker.C:
		}

		free := w.concurrency - len(sem)
		if free <= 0 {
			continue
		}
		jobs, err := w.source.Reserve(ctx, free)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("reserve failed", "queue", w.source.Name(), "err", err)
			}
			continue
		}
		for _, job := range jobs {
			sem <- struct{}{}
			go func(job Job) {
				defer func() { <-sem }()
				w.process(ctx, job)
			}(job)
		}
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	disp, err := w.handler(ctx, job)

	// Queue transitions are detached from the shutdown signal: once the
	// handler's side effect has happened, failing to record the outcome
	// during a graceful drain would redeliver the job on restart.
	ctx = context.WithoutCancel(ctx)

	switch disp {
	case Advance:
		if err := w.source.Complete(ctx, job.ID); err != nil {
			w.logger.Error("complete failed", "queue", w.source.Name(), "job_id", job.ID, "err", err)
		}
		w.logger.Debug("job completed", "queue", w.source.Name(), "job_id", job.ID, "attempt", job.Attempt)
		return
	case Fatal:
		w.logger.Error("job failed", "queue", w.source.Name(), "job_id", job.ID, "attempt", job.Attempt, "err", err)
	default:
		w.logger.Warn("job retried", "queue", w.source.Name(), "job_id", job.ID, "attempt", job.Attempt, "err", err)
	}

	redeliver, retryErr := w.source.Retry(ctx, job)
	if retryErr != nil {
		w.logger.Error("retry failed", "queue", w.source.Name(), "job_id", job.ID, "err", retryErr)
		return
	}
	if !redeliver {
		w.logger.Warn("job attempts exhausted", "queue", w.source.Name(), "job_id", job.ID, "attempt", job.Attempt)
	}
}
