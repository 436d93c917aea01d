package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tasnimbay/issuedeck/internal/apperror"
	"github.com/tasnimbay/issuedeck/internal/model"
	"github.com/tasnimbay/issuedeck/internal/repository"
)

// SyncStatusRepository implements repository.SyncStatusRepository on the
// shared connection.
type SyncStatusRepository struct {
	conn *sql.DB
}

var _ repository.SyncStatusRepository = (*SyncStatusRepository)(nil)

// NewSyncStatusRepository creates a SyncStatusRepository backed by db.
func NewSyncStatusRepository(db *DB) *SyncStatusRepository {
	return &SyncStatusRepository{conn: db.conn}
}

// MarkInProgress upserts the repository's sync_status row to in_progress,
// stamping last_sync with the start time and clearing any previous error.
func (r *SyncStatusRepository) MarkInProgress(ctx context.Context, repo string) error {
	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO sync_status (repository, last_sync, status, error_message)
		 VALUES (?, ?, ?, NULL)
		 ON CONFLICT(repository) DO UPDATE SET
			last_sync = excluded.last_sync,
			status = excluded.status,
			error_message = NULL`,
		repo, time.Now().UTC(), model.SyncStatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking sync in_progress for %s: %w", repo, err)
	}
	return nil
}

// MarkCompleted records a successful sync and its completion time.
func (r *SyncStatusRepository) MarkCompleted(ctx context.Context, repo string) error {
	_, err := r.conn.ExecContext(ctx,
		`UPDATE sync_status SET status = ?, last_sync = ? WHERE repository = ?`,
		model.SyncStatusCompleted, time.Now().UTC(), repo,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking sync completed for %s: %w", repo, err)
	}
	return nil
}

// MarkFailed records a failed sync with its error message. The status row is
// the recovery signal: operators re-trigger the sync manually after reading
// it, there is no automatic retry.
func (r *SyncStatusRepository) MarkFailed(ctx context.Context, repo string, message string) error {
	_, err := r.conn.ExecContext(ctx,
		`UPDATE sync_status SET status = ?, error_message = ? WHERE repository = ?`,
		model.SyncStatusFailed, message, repo,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking sync failed for %s: %w", repo, err)
	}
	return nil
}

// Get returns the repository's sync status, or apperror.ErrNotFound when the
// repository has never been synced.
func (r *SyncStatusRepository) Get(ctx context.Context, repo string) (*model.SyncStatus, error) {
	var (
		status model.SyncStatus
		errMsg sql.NullString
	)

	err := r.conn.QueryRowContext(ctx,
		`SELECT repository, last_sync, status, error_message FROM sync_status WHERE repository = ?`,
		repo,
	).Scan(&status.Repository, &status.LastSync, &status.Status, &errMsg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("sync status", repo)
		}
		return nil, fmt.Errorf("sqlite: getting sync status for %s: %w", repo, err)
	}

	if errMsg.Valid {
		s := errMsg.String
		status.ErrorMessage = &s
	}

	return &status, nil
}
