package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"comment_notifier/internal/domain"
)

// Detector classifies observed comments against the store and applies the
// matching mutation. It must be driven from a single goroutine.
type Detector struct {
	comments  CommentStore
	txManager TransactionManager
	logger    *slog.Logger
}

func NewDetector(comments CommentStore, txManager TransactionManager, logger *slog.Logger) *Detector {
	return &Detector{
		comments:  comments,
		txManager: txManager,
		logger:    logger,
	}
}

// Detect compares t with the stored record for the same comment id. Only the
// comment text is compared. Errors are *RecordError with Op persist.
func (d *Detector) Detect(ctx context.Context, t domain.Triple) (domain.Change, error) {
	rec := t.Record()

	existing, err := d.comments.FindByID(ctx, rec.ID)
	switch {
	case errors.Is(err, domain.ErrCommentNotFound):
		if err := d.comments.Insert(ctx, &rec); err != nil {
			return domain.Change{}, &RecordError{Op: OpPersist, CommentID: rec.ID, Err: err}
		}
		d.logger.Info("new comment", "comment_id", rec.ID, "claim", rec.ClaimName)
		return domain.Change{Kind: domain.New, Record: rec}, nil

	case err != nil:
		return domain.Change{}, &RecordError{Op: OpPersist, CommentID: rec.ID, Err: fmt.Errorf("lookup: %w", err)}

	case existing.Text == rec.Text:
		return domain.Change{Kind: domain.Unchanged, Record: *existing}, nil
	}

	err = d.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := d.comments.DeleteByID(txCtx, rec.ID); err != nil {
			return fmt.Errorf("delete previous: %w", err)
		}
		if err := d.comments.Insert(txCtx, &rec); err != nil {
			return fmt.Errorf("insert replacement: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Change{}, &RecordError{Op: OpPersist, CommentID: rec.ID, Err: err}
	}

	d.logger.Info("comment updated", "comment_id", rec.ID, "claim", rec.ClaimName)
	return domain.Change{Kind: domain.Updated, Record: rec}, nil
}
