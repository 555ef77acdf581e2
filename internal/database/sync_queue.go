package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studiobook/internal/models"
)

const syncTaskColumns = `id, task_type, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

// EnqueueSyncTask stores a new sheet mirror task as pending.
func (db *DB) EnqueueSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.SyncStatusPending
	}
	task.CreatedAt = time.Now().UTC()

	res, err := db.ExecContext(ctx,
		`INSERT INTO sync_queue (task_type, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskType, task.BookingID, task.Payload, task.Status,
		task.RetryCount, task.LastError, task.CreatedAt, task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue sync task for %s: %w", task.BookingID, err)
	}
	if task.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("sync task id: %w", err)
	}
	return nil
}

// DueSyncTasks returns pending tasks and retries whose backoff has elapsed
// at now, oldest first.
func (db *DB) DueSyncTasks(ctx context.Context, now time.Time, limit int) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+syncTaskColumns+` FROM sync_queue
		 WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
		 ORDER BY created_at, id LIMIT ?`,
		models.SyncStatusPending, models.SyncStatusRetry, now.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("due sync tasks: %w", err)
	}
	defer rows.Close()
	return scanSyncTasks(rows)
}

// MarkSyncDone records that the sheet reflects the task.
func (db *DB) MarkSyncDone(ctx context.Context, id int64) error {
	return db.setSyncState(ctx,
		`UPDATE sync_queue SET status = ?, last_error = NULL, next_retry_at = NULL, processed_at = ? WHERE id = ?`,
		models.SyncStatusCompleted, time.Now().UTC(), id)
}

// MarkSyncRetry bumps the attempt counter and parks the task until next.
func (db *DB) MarkSyncRetry(ctx context.Context, id int64, cause string, next time.Time) error {
	return db.setSyncState(ctx,
		`UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`,
		models.SyncStatusRetry, cause, next.UTC(), id)
}

// MarkSyncFailed gives up on the task.
func (db *DB) MarkSyncFailed(ctx context.Context, id int64, cause string) error {
	return db.setSyncState(ctx,
		`UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = NULL, processed_at = ? WHERE id = ?`,
		models.SyncStatusFailed, cause, time.Now().UTC(), id)
}

func (db *DB) setSyncState(ctx context.Context, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update sync task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update sync task: %w", sql.ErrNoRows)
	}
	return nil
}

// FailedSyncTasks lists tasks that exhausted their retries, newest first.
func (db *DB) FailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+syncTaskColumns+` FROM sync_queue WHERE status = ? ORDER BY created_at DESC, id DESC`,
		models.SyncStatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed sync tasks: %w", err)
	}
	defer rows.Close()
	return scanSyncTasks(rows)
}

// PurgeSyncTasks deletes completed tasks processed before the cutoff.
// Failed tasks stay for inspection.
func (db *DB) PurgeSyncTasks(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE status = ? AND processed_at < ?`,
		models.SyncStatusCompleted, before.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge sync tasks: %w", err)
	}
	return res.RowsAffected()
}

type rowsScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanSyncTasks(rows rowsScanner) ([]models.SyncTask, error) {
	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		if err := rows.Scan(
			&t.ID, &t.TaskType, &t.BookingID, &t.Payload, &t.Status, &t.RetryCount,
			&t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		); err != nil {
			return nil, fmt.Errorf("scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
