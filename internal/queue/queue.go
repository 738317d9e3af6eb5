/**
 * @description
 * A Redis-backed job queue with the delivery semantics the transfer pipeline
 * needs: at-least-once delivery, delayed scheduling, fixed retry backoff,
 * explicit job ids for dedup and cancellation, and no durable history for
 * finished jobs.
 *
 * Layout per queue: a hash of job envelopes keyed by job id, a sorted set of
 * delayed/ready jobs scored by ready-time, and a sorted set of reserved jobs
 * scored by lease expiry. All transitions run as Lua scripts so concurrent
 * workers and cancellation never observe half-moved jobs.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: Redis client and script support.
 */
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Job is the envelope stored for every queued unit of work.
type Job struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
	Attempt int             `json:"attempt"`
}

// Options configures a queue's retry discipline.
type Options struct {
	// MaxAttempts caps deliveries per job; the job is dropped once exhausted.
	MaxAttempts int
	// Backoff is the fixed delay between redeliveries.
	Backoff time.Duration
	// Lease is how long a reserved job stays invisible before the reaper
	// returns it for redelivery.
	Lease time.Duration
}

// Queue is one named Redis-backed job queue.
type Queue struct {
	name   string
	client redis.UniversalClient
	opts   Options
}

// enqueueScript inserts a job unless one with the same id already exists.
// Re-enqueuing with the same id is a no-op, which is what enforces the
// one-live-job-per-stage invariant.
var enqueueScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[1])
return 1
`)

// removeScript cancels a pending or delayed job. Jobs already reserved by a
// worker are left alone.
var removeScript = redis.NewScript(`
local removed = redis.call("ZREM", KEYS[1], ARGV[1])
if removed == 1 then
  redis.call("HDEL", KEYS[2], ARGV[1])
end
return removed
`)

// reserveScript moves due jobs from the delayed set to the active set under a
// lease and returns their envelopes.
var reserveScript = redis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[3])
local jobs = {}
for i, id in ipairs(ids) do
  redis.call("ZREM", KEYS[1], id)
  redis.call("ZADD", KEYS[2], ARGV[2], id)
  jobs[i] = redis.call("HGET", KEYS[3], id)
end
return jobs
`)

// dropScript discards a job entirely (completion, or attempts exhausted).
var dropScript = redis.NewScript(`
redis.call("ZREM", KEYS[1], ARGV[1])
redis.call("HDEL", KEYS[2], ARGV[1])
return 1
`)

// retryScript releases an active job back to the delayed set with an updated
// envelope and ready-time.
var retryScript = redis.NewScript(`
redis.call("ZREM", KEYS[1], ARGV[1])
redis.call("HSET", KEYS[2], ARGV[1], ARGV[2])
redis.call("ZADD", KEYS[3], ARGV[3], ARGV[1])
return 1
`)

// reapScript returns jobs with expired leases to the delayed set so a crashed
// worker's jobs are redelivered.
var reapScript = redis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
for _, id in ipairs(ids) do
  redis.call("ZREM", KEYS[1], id)
  redis.call("ZADD", KEYS[2], ARGV[1], id)
end
return #ids
`)

// New returns a queue bound to the given name and Redis client.
func New(name string, client redis.UniversalClient, opts Options) *Queue {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Lease <= 0 {
		opts.Lease = 2 * time.Minute
	}
	return &Queue{name: name, client: client, opts: opts}
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

func (q *Queue) jobsKey() string    { return "signer:queue:" + q.name + ":jobs" }
func (q *Queue) delayedKey() string { return "signer:queue:" + q.name + ":delayed" }
func (q *Queue) activeKey() string  { return "signer:queue:" + q.name + ":active" }

// Enqueue schedules payload under jobID after the given delay. Enqueuing an
// id that is already queued or active is a silent no-op.
func (q *Queue) Enqueue(ctx context.Context, payload any, jobID string, delay time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for job %s: %w", jobID, err)
	}
	envelope, err := json.Marshal(Job{ID: jobID, Payload: raw, Attempt: 1})
	if err != nil {
		return fmt.Errorf("marshal envelope for job %s: %w", jobID, err)
	}
	readyAt := time.Now().Add(delay).UnixMilli()
	_, err = enqueueScript.Run(ctx, q.client,
		[]string{q.jobsKey(), q.delayedKey()},
		jobID, string(envelope), readyAt,
	).Int()
	if err != nil {
		return fmt.Errorf("enqueue job %s on %s: %w", jobID, q.name, err)
	}
	return nil
}

// Remove cancels a pending or delayed job and reports whether one existed.
// Jobs currently held by a worker are not touched.
func (q *Queue) Remove(ctx context.Context, jobID string) (bool, error) {
	removed, err := removeScript.Run(ctx, q.client,
		[]string{q.delayedKey(), q.jobsKey()},
		jobID,
	).Int()
	if err != nil {
		return false, fmt.Errorf("remove job %s from %s: %w", jobID, q.name, err)
	}
	return removed == 1, nil
}

// Reserve leases up to n due jobs for processing.
func (q *Queue) Reserve(ctx context.Context, n int) ([]Job, error) {
	now := time.Now().UnixMilli()
	leaseExpiry := time.Now().Add(q.opts.Lease).UnixMilli()
	raw, err := reserveScript.Run(ctx, q.client,
		[]string{q.delayedKey(), q.activeKey(), q.jobsKey()},
		now, leaseExpiry, n,
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("reserve jobs on %s: %w", q.name, err)
	}
	jobs := make([]Job, 0, len(raw))
	for _, item := range raw {
		var job Job
		if err := json.Unmarshal([]byte(item), &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Complete removes a finished job. Finished jobs keep no history.
func (q *Queue) Complete(ctx context.Context, jobID string) error {
	_, err := dropScript.Run(ctx, q.client,
		[]string{q.activeKey(), q.jobsKey()},
		jobID,
	).Int()
	if err != nil {
		return fmt.Errorf("complete job %s on %s: %w", jobID, q.name, err)
	}
	return nil
}

// Retry releases job back to the delayed set after the queue's fixed backoff,
// or drops it when its attempts are exhausted. It reports whether the job
// will be redelivered.
func (q *Queue) Retry(ctx context.Context, job Job) (bool, error) {
	if job.Attempt >= q.opts.MaxAttempts {
		if err := q.Complete(ctx, job.ID); err != nil {
			return false, err
		}
		return false, nil
	}
	job.Attempt++
	envelope, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("marshal envelope for job %s: %w", job.ID, err)
	}
	readyAt := time.Now().Add(q.opts.Backoff).UnixMilli()
	_, err = retryScript.Run(ctx, q.client,
		[]string{q.activeKey(), q.jobsKey(), q.delayedKey()},
		job.ID, string(envelope), readyAt,
	).Int()
	if err != nil {
		return false, fmt.Errorf("retry job %s on %s: %w", job.ID, q.name, err)
	}
	return true, nil
}

// Reap returns jobs whose processing lease expired to the delayed set and
// reports how many were recovered.
func (q *Queue) Reap(ctx context.Context) (int, error) {
	recovered, err := reapScript.Run(ctx, q.client,
		[]string{q.activeKey(), q.delayedKey()},
		time.Now().UnixMilli(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("reap queue %s: %w", q.name, err)
	}
	return recovered, nil
}

// Depth reports the number of delayed and active jobs.
func (q *Queue) Depth(ctx context.Context) (delayed, active int64, err error) {
	if delayed, err = q.client.ZCard(ctx, q.delayedKey()).Result(); err != nil {
		return 0, 0, fmt.Errorf("queue %s depth: %w", q.name, err)
	}
	if active, err = q.client.ZCard(ctx, q.activeKey()).Result(); err != nil {
		return 0, 0, fmt.Errorf("queue %s depth: %w", q.name, err)
	}
	return delayed, active, nil
}
