package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"comment_notifier/internal/domain"
)

// Syncer defines the interface for sync operations.
type Syncer interface {
	Sync(ctx context.Context) (*domain.SyncStats, error)
}

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule accepts a cron expression with an optional leading seconds
// field, or a descriptor such as "@hourly". An empty expression falls back to
// a fixed interval.
func ParseSchedule(expr string, interval time.Duration) (cron.Schedule, error) {
	if expr != "" {
		sched, err := parser.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
		}
		return sched, nil
	}
	if interval <= 0 {
		return nil, errors.New("either a schedule or a positive interval is required")
	}
	return cron.Every(interval), nil
}

type Scheduler struct {
	syncer     Syncer
	schedule   cron.Schedule
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewScheduler(syncer Syncer, schedule cron.Schedule, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:     syncer,
		schedule:   schedule,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// Start runs a sync immediately and then at every scheduled time until ctx
// is done. Runs never overlap: ticks that pass while a run is in progress
// collapse into a single run started as soon as it finishes.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "run_timeout", s.runTimeout)

	for {
		started := time.Now()
		s.runSync(ctx)

		next := s.schedule.Next(started)
		wait := time.Until(next)
		if wait < 0 {
			s.logger.Warn("sync overran its schedule, starting next run now", "missed", next)
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	syncCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		syncCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	if _, err := s.syncer.Sync(syncCtx); err != nil {
		s.logger.Error("sync failed", "error", err)
	}
}
