package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type sourceStub struct {
	completed []string
	retried   []string
	redeliver bool
	retryErr  error
	ctxErrs   []error
}

func (s *sourceStub) Name() string { return "test" }

func (s *sourceStub) Reserve(ctx context.Context, n int) ([]Job, error) {
	return nil, nil
}

func (s *sourceStub) Complete(ctx context.Context, jobID string) error {
	s.completed = append(s.completed, jobID)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	return nil
}

func (s *sourceStub) Retry(ctx context.Context, job Job) (bool, error) {
	s.retried = append(s.retried, job.ID)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	return s.redeliver, s.retryErr
}

func newTestWorker(source jobSource, handler Handler) *Worker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newWorker(source, handler, 1, logger)
}

func TestProcess_AdvanceCompletesJob(t *testing.T) {
	source := &sourceStub{}
	worker := newTestWorker(source, func(ctx context.Context, job Job) (Disposition, error) {
		return Advance, nil
	})

	worker.process(context.Background(), Job{ID: "job-1", Attempt: 1})

	if len(source.completed) != 1 || source.completed[0] != "job-1" {
		t.Fatalf("expected job-1 to be completed, got %v", source.completed)
	}
	if len(source.retried) != 0 {
		t.Fatalf("expected no retry, got %v", source.retried)
	}
}

func TestProcess_RetryLaterRedelivers(t *testing.T) {
	source := &sourceStub{redeliver: true}
	worker := newTestWorker(source, func(ctx context.Context, job Job) (Disposition, error) {
		return RetryLater, errors.New("balance not reached")
	})

	worker.process(context.Background(), Job{ID: "job-1", Attempt: 1})

	if len(source.retried) != 1 {
		t.Fatalf("expected one retry, got %v", source.retried)
	}
	if len(source.completed) != 0 {
		t.Fatalf("expected no completion, got %v", source.completed)
	}
}

func TestProcess_FatalStillRetries(t *testing.T) {
	// Fatal only changes the log level; the queue treats it like any other
	// failed delivery.
	source := &sourceStub{redeliver: true}
	worker := newTestWorker(source, func(ctx context.Context, job Job) (Disposition, error) {
		return Fatal, errors.New("key material missing")
	})

	worker.process(context.Background(), Job{ID: "job-1", Attempt: 2})

	if len(source.retried) != 1 {
		t.Fatalf("expected one retry, got %v", source.retried)
	}
}

func TestProcess_ShutdownStillRecordsCompletion(t *testing.T) {
	// A handler that finished its side effect during a graceful drain must
	// still get its completion written, or the lease reaper would redeliver
	// the job and re-run the side effect on restart.
	source := &sourceStub{}
	worker := newTestWorker(source, func(ctx context.Context, job Job) (Disposition, error) {
		return Advance, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	worker.process(ctx, Job{ID: "job-1", Attempt: 1})

	if len(source.completed) != 1 {
		t.Fatalf("expected completion despite cancelled context, got %v", source.completed)
	}
	if source.ctxErrs[0] != nil {
		t.Fatalf("completion ran on a cancelled context: %v", source.ctxErrs[0])
	}
}

func TestProcess_ShutdownStillRecordsRetry(t *testing.T) {
	source := &sourceStub{redeliver: true}
	worker := newTestWorker(source, func(ctx context.Context, job Job) (Disposition, error) {
		return RetryLater, errors.New("balance not reached")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	worker.process(ctx, Job{ID: "job-1", Attempt: 1})

	if len(source.retried) != 1 {
		t.Fatalf("expected retry despite cancelled context, got %v", source.retried)
	}
	if source.ctxErrs[0] != nil {
		t.Fatalf("retry ran on a cancelled context: %v", source.ctxErrs[0])
	}
}

func TestProcess_RetryFailureDoesNotPanic(t *testing.T) {
	source := &sourceStub{retryErr: errors.New("redis unavailable")}
	worker := newTestWorker(source, func(ctx context.Context, job Job) (Disposition, error) {
		return RetryLater, errors.New("still waiting")
	})

	worker.process(context.Background(), Job{ID: "job-1", Attempt: 1})
}
