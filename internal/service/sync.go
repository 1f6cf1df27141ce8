package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"comment_notifier/internal/config"
	"comment_notifier/internal/domain"
	"comment_notifier/internal/notify"
)

// SyncService runs one full pass: walk the remote hierarchy, classify every
// comment, and notify about the new and updated ones.
type SyncService struct {
	sourceID  string
	walker    Walker
	detector  *Detector
	syncState SyncStateStore
	sender    Sender
	logger    *slog.Logger
	config    config.SyncConfig
	notify    config.NotifyConfig
}

func NewSyncService(
	sourceID string,
	walker Walker,
	comments CommentStore,
	txManager TransactionManager,
	syncState SyncStateStore,
	sender Sender,
	logger *slog.Logger,
	cfg config.SyncConfig,
	notifyCfg config.NotifyConfig,
) *SyncService {
	logger = logger.With("source", sourceID)
	return &SyncService{
		sourceID:  sourceID,
		walker:    walker,
		detector:  NewDetector(comments, txManager, logger),
		syncState: syncState,
		sender:    sender,
		logger:    logger,
		config:    cfg,
		notify:    notifyCfg,
	}
}

// Sync performs one run. The returned stats are filled in as far as the run
// got, also when an error ends it early.
func (s *SyncService) Sync(ctx context.Context) (*domain.SyncStats, error) {
	startTime := time.Now()
	s.logger.Info("starting sync", "on_record_error", s.config.OnRecordError)

	stats := &domain.SyncStats{SourceID: s.sourceID}

	g, gctx := errgroup.WithContext(ctx)
	triples, tally := s.walker.Walk(gctx)

	dispatcher := notify.NewDispatcher(s.sender, s.notify.QueueSize, s.logger,
		notify.WithErrorHandler(func(n domain.Notification, err error) error {
			rerr := &RecordError{Op: OpNotify, CommentID: n.Record.ID, Err: err}
			if s.config.SkipRecordErrors() && ctx.Err() == nil {
				s.logger.Error("skipping notification", "comment_id", n.Record.ID, "error", err)
				return nil
			}
			return rerr
		}),
	)

	g.Go(func() error {
		defer dispatcher.Close()
		return s.detectAll(gctx, triples, dispatcher, stats)
	})
	// Already persisted changes are still delivered when detection fails, so
	// the dispatcher runs on the caller's context.
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})

	err := g.Wait()

	stats.Accounts = int(tally.Accounts.Load())
	stats.Claims = int(tally.Claims.Load())
	stats.Fetched = int(tally.Comments.Load())
	stats.FailedPages = int(tally.FailedPages.Load())
	stats.Notified = dispatcher.Sent()
	stats.Errors += dispatcher.Dropped()
	stats.Duration = time.Since(startTime)

	if err != nil {
		s.logger.Error("sync aborted",
			"error", err,
			"new", stats.New,
			"updated", stats.Updated,
			"notified", stats.Notified,
			"duration", stats.Duration,
		)
		return stats, fmt.Errorf("sync run: %w", err)
	}

	if err := s.updateSyncState(ctx, stats); err != nil {
		return stats, fmt.Errorf("update sync state: %w", err)
	}

	if stats.FailedPages > 0 {
		s.logger.Warn("sync incomplete, some pages could not be fetched", "failed_pages", stats.FailedPages)
	}

	s.logger.Info("sync completed",
		"accounts", stats.Accounts,
		"claims", stats.Claims,
		"fetched", stats.Fetched,
		"new", stats.New,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"errors", stats.Errors,
		"failed_pages", stats.FailedPages,
		"notified", stats.Notified,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (s *SyncService) detectAll(ctx context.Context, triples <-chan domain.Triple, dispatcher *notify.Dispatcher, stats *domain.SyncStats) error {
	for t := range triples {
		change, err := s.detector.Detect(ctx, t)
		if err != nil {
			if ferr := s.handleRecordError(ctx, err, stats); ferr != nil {
				return ferr
			}
			continue
		}

		switch change.Kind {
		case domain.Unchanged:
			stats.Unchanged++
			continue
		case domain.New:
			stats.New++
		case domain.Updated:
			stats.Updated++
		}

		n := notify.Compose(s.notify.From, s.notify.To, change)
		if err := dispatcher.Enqueue(ctx, n); err != nil {
			return fmt.Errorf("queue notification for comment %s: %w", change.Record.ID, err)
		}
	}
	return ctx.Err()
}

func (s *SyncService) handleRecordError(ctx context.Context, err error, stats *domain.SyncStats) error {
	var rerr *RecordError
	if !s.config.SkipRecordErrors() || !errors.As(err, &rerr) || ctx.Err() != nil {
		return err
	}

	stats.Errors++
	s.logger.Error("skipping comment", "comment_id", rerr.CommentID, "op", rerr.Op, "error", rerr.Err)
	return nil
}

func (s *SyncService) updateSyncState(ctx context.Context, stats *domain.SyncStats) error {
	state, err := s.syncState.Get(ctx, s.sourceID)
	if err != nil {
		return err
	}

	state.SourceID = s.sourceID
	state.LastSyncedAt = time.Now()
	state.TotalRuns++
	state.TotalNotified += int64(stats.Notified)

	return s.syncState.Update(ctx, state)
}
