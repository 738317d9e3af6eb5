/**
 * @description
 * Cron scheduler for queue maintenance. Jobs whose worker died mid-lease
 * are returned to the waiting set so another replica can pick them up.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/transfa/signer-service/internal/queue"
)

// leaseReapSchedule runs the redelivery sweep once a minute, matching the
// shortest lease the queues hand out.
const leaseReapSchedule = "* * * * *"

// depthLogSchedule surfaces per-queue backlog sizes in the logs so stuck
// transfers are visible without Redis access.
const depthLogSchedule = "*/5 * * * *"

// Scheduler manages the periodic queue maintenance jobs.
type Scheduler struct {
	cron   *cron.Cron
	queues []*queue.Queue
	logger *slog.Logger
}

// NewScheduler creates a scheduler over the given queues.
func NewScheduler(queues []*queue.Queue, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		queues: queues,
		logger: logger,
	}
}

// Start registers the maintenance jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(leaseReapSchedule, s.reapExpiredLeases); err != nil {
		s.logger.Error("failed to schedule lease reaper", "error", err)
	} else {
		s.logger.Info("scheduled lease reaper", "schedule", leaseReapSchedule)
	}

	if _, err := s.cron.AddFunc(depthLogSchedule, s.logQueueDepths); err != nil {
		s.logger.Error("failed to schedule depth logging", "error", err)
	} else {
		s.logger.Info("scheduled depth logging", "schedule", depthLogSchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) logQueueDepths() {
	ctx := context.Background()
	for _, q := range s.queues {
		delayed, active, err := q.Depth(ctx)
		if err != nil {
			s.logger.Error("queue depth check failed", "queue", q.Name(), "error", err)
			continue
		}
		s.logger.Info("queue depth", "queue", q.Name(), "delayed", delayed, "active", active)
	}
}

func (s *Scheduler) reapExpiredLeases() {
	ctx := context.Background()
	for _, q := range s.queues {
		redelivered, err := q.Reap(ctx)
		if err != nil {
			s.logger.Error("lease reap failed", "queue", q.Name(), "error", err)
			continue
		}
		if redelivered > 0 {
			s.logger.Warn("redelivered expired leases", "queue", q.Name(), "count", redelivered)
		}
	}
}
