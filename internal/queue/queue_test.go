package queue

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T, opts Options) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New("resources", client, opts)
}

func TestEnqueue_SameIDNeverDuplicates(t *testing.T) {
	q := newTestQueue(t, Options{MaxAttempts: 3})
	ctx := context.Background()

	if err := q.Enqueue(ctx, map[string]string{"to": "TFirst"}, "transfer-1", 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, map[string]string{"to": "TSecond"}, "transfer-1", 0); err != nil {
		t.Fatalf("re-Enqueue: %v", err)
	}

	jobs, err := q.Reserve(ctx, 10)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(jobs))
	}
	if !strings.Contains(string(jobs[0].Payload), "TFirst") {
		t.Fatalf("second enqueue overwrote the live job: %s", jobs[0].Payload)
	}

	// The id stays claimed while the job is reserved.
	if err := q.Enqueue(ctx, map[string]string{"to": "TThird"}, "transfer-1", 0); err != nil {
		t.Fatalf("Enqueue while active: %v", err)
	}
	jobs, err = q.Reserve(ctx, 10)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs while the id is active, got %d", len(jobs))
	}
}

func TestEnqueue_IDFreeAgainAfterCompletion(t *testing.T) {
	q := newTestQueue(t, Options{MaxAttempts: 3})
	ctx := context.Background()

	if err := q.Enqueue(ctx, "payload", "transfer-1", 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	jobs, err := q.Reserve(ctx, 1)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("Reserve: jobs=%d err=%v", len(jobs), err)
	}
	if err := q.Complete(ctx, "transfer-1"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	delayed, active, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if delayed != 0 || active != 0 {
		t.Fatalf("expected empty queue after completion, got delayed=%d active=%d", delayed, active)
	}

	if err := q.Enqueue(ctx, "payload", "transfer-1", 0); err != nil {
		t.Fatalf("Enqueue after completion: %v", err)
	}
	jobs, err = q.Reserve(ctx, 1)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("expected the id to be reusable after completion: jobs=%d err=%v", len(jobs), err)
	}
}

func TestRemove_PendingJobOnly(t *testing.T) {
	q := newTestQueue(t, Options{MaxAttempts: 3})
	ctx := context.Background()

	if err := q.Enqueue(ctx, "payload", "transfer-1", time.Hour); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	removed, err := q.Remove(ctx, "transfer-1")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Fatal("expected removal of the pending job")
	}

	removed, err = q.Remove(ctx, "transfer-1")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed {
		t.Fatal("expected second removal to report nothing left")
	}

	// A job a worker holds is not cancellable.
	if err := q.Enqueue(ctx, "payload", "transfer-2", 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if jobs, err := q.Reserve(ctx, 1); err != nil || len(jobs) != 1 {
		t.Fatalf("Reserve: jobs=%d err=%v", len(jobs), err)
	}
	removed, err = q.Remove(ctx, "transfer-2")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed {
		t.Fatal("expected reserved job to be left alone")
	}
}

func TestRetry_CountsAttemptsAndDropsOnExhaustion(t *testing.T) {
	q := newTestQueue(t, Options{MaxAttempts: 2, Backoff: 0})
	ctx := context.Background()

	if err := q.Enqueue(ctx, "payload", "transfer-1", 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	jobs, err := q.Reserve(ctx, 1)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("Reserve: jobs=%d err=%v", len(jobs), err)
	}
	if jobs[0].Attempt != 1 {
		t.Fatalf("expected first delivery, got attempt %d", jobs[0].Attempt)
	}

	redeliver, err := q.Retry(ctx, jobs[0])
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if !redeliver {
		t.Fatal("expected redelivery on first failure")
	}

	jobs, err = q.Reserve(ctx, 1)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("Reserve after retry: jobs=%d err=%v", len(jobs), err)
	}
	if jobs[0].Attempt != 2 {
		t.Fatalf("expected second delivery, got attempt %d", jobs[0].Attempt)
	}

	redeliver, err = q.Retry(ctx, jobs[0])
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if redeliver {
		t.Fatal("expected the job to be dropped once attempts are spent")
	}
	delayed, active, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if delayed != 0 || active != 0 {
		t.Fatalf("expected no trace of the exhausted job, got delayed=%d active=%d", delayed, active)
	}
}

func TestReap_RedeliversExpiredLeases(t *testing.T) {
	q := newTestQueue(t, Options{MaxAttempts: 3, Lease: time.Millisecond})
	ctx := context.Background()

	if err := q.Enqueue(ctx, "payload", "transfer-1", 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if jobs, err := q.Reserve(ctx, 1); err != nil || len(jobs) != 1 {
		t.Fatalf("Reserve: jobs=%d err=%v", len(jobs), err)
	}

	time.Sleep(20 * time.Millisecond)
	recovered, err := q.Reap(ctx)
	if err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if recovered != 1 {
		t.Fatalf("expected one recovered job, got %d", recovered)
	}

	jobs, err := q.Reserve(ctx, 1)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("Reserve after reap: jobs=%d err=%v", len(jobs), err)
	}
	if jobs[0].ID != "transfer-1" {
		t.Fatalf("expected the leased job back, got %q", jobs[0].ID)
	}
}

func TestReap_LeavesLiveLeasesAlone(t *testing.T) {
	q := newTestQueue(t, Options{MaxAttempts: 3, Lease: time.Minute})
	ctx := context.Background()

	if err := q.Enqueue(ctx, "payload", "transfer-1", 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if jobs, err := q.Reserve(ctx, 1); err != nil || len(jobs) != 1 {
		t.Fatalf("Reserve: jobs=%d err=%v", len(jobs), err)
	}

	recovered, err := q.Reap(ctx)
	if err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if recovered != 0 {
		t.Fatalf("expected no recoveries under a live lease, got %d", recovered)
	}
}
