package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"comment_notifier/internal/domain"
)

type SyncStateStore struct {
	db *sqlx.DB
}

func NewSyncStateStore(db *sqlx.DB) *SyncStateStore {
	return &SyncStateStore{db: db}
}

func (s *SyncStateStore) Get(ctx context.Context, sourceID string) (*domain.SyncState, error) {
	var state domain.SyncState
	query := s.db.Rebind(`
		SELECT source_id, last_synced_at, total_runs, total_notified
		FROM sync_state
		WHERE source_id = ?`)

	err := s.db.GetContext(ctx, &state, query, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		// Return empty state for sources that never completed a run
		return &domain.SyncState{SourceID: sourceID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select sync state: %w", err)
	}
	return &state, nil
}

func (s *SyncStateStore) Update(ctx context.Context, state *domain.SyncState) error {
	exec := GetExecutor(ctx, s.db)
	query := exec.Rebind(`
		INSERT INTO sync_state (source_id, last_synced_at, total_runs, total_notified)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source_id) DO UPDATE SET
			last_synced_at = EXCLUDED.last_synced_at,
			total_runs = EXCLUDED.total_runs,
			total_notified = EXCLUDED.total_notified`)

	_, err := exec.ExecContext(ctx, query,
		state.SourceID,
		state.LastSyncedAt.UTC(),
		state.TotalRuns,
		state.TotalNotified,
	)
	if err != nil {
		return fmt.Errorf("upsert sync state: %w", err)
	}
	return nil
}
