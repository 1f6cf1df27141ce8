package domain

import "time"

// SyncStats holds statistics about a sync operation.
type SyncStats struct {
	SourceID    string
	Accounts    int
	Claims      int
	Fetched     int
	New         int
	Updated     int
	Unchanged   int
	Errors      int
	FailedPages int
	Notified    int
	Duration    time.Duration
}

type SyncState struct {
	SourceID      string    `db:"source_id"`
	LastSyncedAt  time.Time `db:"last_synced_at"`
	TotalRuns     int64     `db:"total_runs"`
	TotalNotified int64     `db:"total_notified"`
}
