package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"studiobook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enqueueTestTask(t *testing.T, db *DB, bookingID string) *models.SyncTask {
	t.Helper()
	task := &models.SyncTask{
		TaskType:  models.SyncTaskUpsert,
		BookingID: bookingID,
		Payload:   `{"booking_id":"` + bookingID + `"}`,
	}
	require.NoError(t, db.EnqueueSyncTask(context.Background(), task))
	return task
}

func TestSyncQueueDueOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := enqueueTestTask(t, db, "LL-1")
	second := enqueueTestTask(t, db, "LL-2")
	assert.Equal(t, models.SyncStatusPending, first.Status)
	assert.NotZero(t, first.ID)

	due, err := db.DueSyncTasks(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, first.ID, due[0].ID)
	assert.Equal(t, second.ID, due[1].ID)

	due, err = db.DueSyncTasks(ctx, time.Now(), 1)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestSyncQueueRetryBackoff(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	task := enqueueTestTask(t, db, "LL-3")

	now := time.Now()
	require.NoError(t, db.MarkSyncRetry(ctx, task.ID, "sheets quota", now.Add(time.Minute)))

	due, err := db.DueSyncTasks(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = db.DueSyncTasks(ctx, now.Add(2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, models.SyncStatusRetry, due[0].Status)
	assert.Equal(t, 1, due[0].RetryCount)
	require.NotNil(t, due[0].LastError)
	assert.Equal(t, "sheets quota", *due[0].LastError)
}

func TestSyncQueueDoneAndFailed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	done := enqueueTestTask(t, db, "LL-4")
	failed := enqueueTestTask(t, db, "LL-5")

	require.NoError(t, db.MarkSyncDone(ctx, done.ID))
	require.NoError(t, db.MarkSyncFailed(ctx, failed.ID, "sheet deleted"))

	due, err := db.DueSyncTasks(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	dead, err := db.FailedSyncTasks(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "LL-5", dead[0].BookingID)
	assert.NotNil(t, dead[0].ProcessedAt)
}

func TestSyncQueueMarkUnknownTask(t *testing.T) {
	db := setupTestDB(t)
	err := db.MarkSyncDone(context.Background(), 999)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSyncQueuePurgeCompleted(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	done := enqueueTestTask(t, db, "LL-6")
	failed := enqueueTestTask(t, db, "LL-7")
	enqueueTestTask(t, db, "LL-8")

	require.NoError(t, db.MarkSyncDone(ctx, done.ID))
	require.NoError(t, db.MarkSyncFailed(ctx, failed.ID, "boom"))

	n, err := db.PurgeSyncTasks(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = db.PurgeSyncTasks(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var left int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_queue").Scan(&left))
	assert.Equal(t, 2, left)
}
