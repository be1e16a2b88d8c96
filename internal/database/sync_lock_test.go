package database

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flightbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncLock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ok, err := db.AcquireLock(ctx, models.SyncLockName, "main", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Re-entrant for the same owner.
	ok, err = db.AcquireLock(ctx, models.SyncLockName, "main", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.AcquireLock(ctx, models.SyncLockName, "agent", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Release by a non-owner is a no-op.
	require.NoError(t, db.ReleaseLock(ctx, models.SyncLockName, "agent"))
	ok, err = db.AcquireLock(ctx, models.SyncLockName, "agent", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.ReleaseLock(ctx, models.SyncLockName, "main"))
	ok, err = db.AcquireLock(ctx, models.SyncLockName, "agent", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSyncLockStaleTakeover(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ok, err := db.AcquireLock(ctx, models.SyncLockName, "crashed", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = db.AcquireLock(ctx, models.SyncLockName, "agent", time.Nanosecond)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSyncLockConcurrentAcquire(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			defer wg.Done()
			ok, err := db.AcquireLock(ctx, models.SyncLockName, fmt.Sprintf("owner-%d", id), time.Minute)
			if err == nil && ok {
				winners.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
