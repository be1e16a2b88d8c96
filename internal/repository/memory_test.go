package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"flightbook/internal/errs"
	"flightbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memItem(id string, typ models.ItemType, status models.Status) *models.QueueItem {
	now := time.Now().UTC()
	return &models.QueueItem{
		ID:        id,
		Type:      typ,
		Data:      json.RawMessage(`{"flightId":"F1"}`),
		Timestamp: now,
		Status:    status,
		UpdatedAt: now,
	}
}

func TestMemoryStore_Queue(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, memItem("a", models.TypeBooking, models.StatusPending)))
	require.NoError(t, s.Put(ctx, memItem("b", models.TypePriceAlert, models.StatusFailed)))
	require.NoError(t, s.Put(ctx, memItem("c", models.TypeBooking, models.StatusPending)))

	t.Run("LastWriteWinsKeepsOrder", func(t *testing.T) {
		upd := memItem("a", models.TypeBooking, models.StatusProcessing)
		require.NoError(t, s.Put(ctx, upd))

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "a", all[0].ID)
		assert.Equal(t, models.StatusProcessing, all[0].Status)
	})

	t.Run("ReturnsCopies", func(t *testing.T) {
		got, err := s.Get(ctx, "b")
		require.NoError(t, err)
		got.Data[0] = 'X'
		got.Status = models.StatusCompleted

		again, err := s.Get(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, again.Status)
		assert.JSONEq(t, `{"flightId":"F1"}`, string(again.Data))
	})

	t.Run("Index", func(t *testing.T) {
		bookings, err := s.GetByIndex(ctx, "type", string(models.TypeBooking))
		require.NoError(t, err)
		assert.Len(t, bookings, 2)

		failed, err := s.GetByIndex(ctx, "status", string(models.StatusFailed))
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, "b", failed[0].ID)

		_, err = s.GetByIndex(ctx, "userId", "u1")
		assert.ErrorIs(t, err, errs.ErrUnsupportedIndex)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "c"))
		require.NoError(t, s.Delete(ctx, "c"))
		_, err := s.Get(ctx, "c")
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		done := memItem("done", models.TypeBooking, models.StatusCompleted)
		done.ExpiresAt = &past
		require.NoError(t, s.Put(ctx, done))

		n, err := s.DeleteExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = s.Get(ctx, "done")
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestMemoryStore_DraftsAndPreferences(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutDraft(ctx, &models.BookingDraft{ID: "d1", UserID: "u1", FlightID: "F1", Status: models.DraftStatusPending}))
	require.NoError(t, s.PutDraft(ctx, &models.BookingDraft{ID: "d2", UserID: "u2", FlightID: "F2", Status: models.DraftStatusDraft}))

	byUser, err := s.GetDraftsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, "F1", byUser[0].FlightID)

	pending, err := s.GetDraftsByStatus(ctx, models.DraftStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, s.DeleteDraft(ctx, "d1"))
	_, err = s.GetDraft(ctx, "d1")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, s.SetPreference(ctx, models.PrefAuthToken, json.RawMessage(`"tok"`)))
	v, err := s.GetPreference(ctx, models.PrefAuthToken)
	require.NoError(t, err)
	assert.JSONEq(t, `"tok"`, string(v))

	require.NoError(t, s.DeletePreference(ctx, models.PrefAuthToken))
	_, err = s.GetPreference(ctx, models.PrefAuthToken)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemoryStore_Lock(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ok, err := s.AcquireLock(ctx, models.SyncLockName, "one", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AcquireLock(ctx, models.SyncLockName, "two", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.ReleaseLock(ctx, models.SyncLockName, "two"))
	ok, _ = s.AcquireLock(ctx, models.SyncLockName, "two", time.Minute)
	assert.False(t, ok)

	require.NoError(t, s.ReleaseLock(ctx, models.SyncLockName, "one"))
	ok, _ = s.AcquireLock(ctx, models.SyncLockName, "two", time.Minute)
	assert.True(t, ok)

	// a zero ttl treats any holder as stale
	ok, _ = s.AcquireLock(ctx, models.SyncLockName, "three", 0)
	assert.True(t, ok)
}
