package database

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

func TestBookingDrafts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	d1 := &models.BookingDraft{ID: "d1", UserID: "u1", FlightID: "f1", Data: json.RawMessage(`{"seat":"1A"}`), Status: models.DraftStatusPending, CreatedAt: now, UpdatedAt: now}
	d2 := &models.BookingDraft{ID: "d2", UserID: "u1", FlightID: "f2", Status: models.DraftStatusDraft, CreatedAt: now, UpdatedAt: now}
	d3 := &models.BookingDraft{ID: "d3", UserID: "u2", FlightID: "f1", Status: models.DraftStatusPending, CreatedAt: now, UpdatedAt: now}

	for _, d := range []*models.BookingDraft{d1, d2, d3} {
		require.NoError(t, db.PutDraft(ctx, d))
	}

	got, err := db.GetDraft(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, `{"seat":"1A"}`, string(got.Data))
	assert.Equal(t, "f1", got.FlightID)

	byUser, err := db.GetDraftsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, byUser, 2)
	assert.Equal(t, "d1", byUser[0].ID)

	pending, err := db.GetDraftsByStatus(ctx, models.DraftStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	got.Status = models.DraftStatusSynced
	require.NoError(t, db.PutDraft(ctx, got))
	got, err = db.GetDraft(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusSynced, got.Status)

	require.NoError(t, db.DeleteDraft(ctx, "d1"))
	require.NoError(t, db.DeleteDraft(ctx, "d1"))
	_, err = db.GetDraft(ctx, "d1")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPreferences(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetPreference(ctx, models.PrefAuthToken)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, db.SetPreference(ctx, models.PrefAuthToken, json.RawMessage(`"tok-1"`)))
	require.NoError(t, db.SetPreference(ctx, models.PrefAuthToken, json.RawMessage(`"tok-2"`)))

	val, err := db.GetPreference(ctx, models.PrefAuthToken)
	require.NoError(t, err)
	assert.Equal(t, `"tok-2"`, string(val))

	require.NoError(t, db.DeletePreference(ctx, models.PrefAuthToken))
	require.NoError(t, db.DeletePreference(ctx, models.PrefAuthToken))
	_, err = db.GetPreference(ctx, models.PrefAuthToken)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
