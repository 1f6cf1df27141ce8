package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"comment_notifier/internal/domain"
)

const commentColumns = `id, account_id, claim_id, claim_name, commenter_id,
	commenter_name, commenter_url, comment, is_hidden, "timestamp"`

type CommentStore struct {
	db *sqlx.DB
}

func NewCommentStore(db *sqlx.DB) *CommentStore {
	return &CommentStore{db: db}
}

// FindByID returns ErrNotFound when no comment with id has been stored.
func (s *CommentStore) FindByID(ctx context.Context, id string) (*domain.CommentRecord, error) {
	exec := GetExecutor(ctx, s.db)
	query := exec.Rebind(`SELECT ` + commentColumns + ` FROM comments WHERE id = ?`)

	var rec domain.CommentRecord
	err := sqlx.GetContext(ctx, exec, &rec, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select comment %s: %w", id, err)
	}

	rec.Timestamp = rec.Timestamp.UTC()
	return &rec, nil
}

func (s *CommentStore) Insert(ctx context.Context, rec *domain.CommentRecord) error {
	exec := GetExecutor(ctx, s.db)
	query := exec.Rebind(`
		INSERT INTO comments (` + commentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := exec.ExecContext(ctx, query,
		rec.ID,
		rec.AccountID,
		rec.ClaimID,
		rec.ClaimName,
		rec.CommenterID,
		rec.CommenterName,
		rec.CommenterURL,
		rec.Text,
		rec.IsHidden,
		rec.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert comment %s: %w", rec.ID, err)
	}
	return nil
}

func (s *CommentStore) DeleteByID(ctx context.Context, id string) error {
	exec := GetExecutor(ctx, s.db)

	_, err := exec.ExecContext(ctx, exec.Rebind(`DELETE FROM comments WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete comment %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored comments.
func (s *CommentStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM comments`); err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}
