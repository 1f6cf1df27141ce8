package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"comment_notifier/internal/crawl"
	"comment_notifier/internal/domain"
)

// CommentStore must return domain.ErrCommentNotFound from FindByID when the
// id has never been stored.
type CommentStore interface {
	FindByID(ctx context.Context, id string) (*domain.CommentRecord, error)
	Insert(ctx context.Context, rec *domain.CommentRecord) error
	DeleteByID(ctx context.Context, id string) error
}

type SyncStateStore interface {
	Get(ctx context.Context, sourceID string) (*domain.SyncState, error)
	Update(ctx context.Context, state *domain.SyncState) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Walker interface {
	Walk(ctx context.Context) (<-chan domain.Triple, *crawl.Tally)
}

type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}
