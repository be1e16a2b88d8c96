package service

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"flightbook/internal/database"
	"flightbook/internal/errs"
	"flightbook/internal/events"
	"flightbook/internal/models"
	"flightbook/internal/repository"
	"flightbook/internal/worker"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestQueueService_AddRoundTrip(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "queue.db"), testLogger())
	require.NoError(t, err)
	defer db.Close()

	bus := events.NewEventBus()
	var added []*events.Event
	bus.Subscribe(events.EventQueueItemAdded, func(e *events.Event) error {
		added = append(added, e)
		return nil
	})

	svc := NewQueueService(db, bus, testLogger())
	ctx := context.Background()

	// whitespace and key order must survive unchanged
	data := json.RawMessage(`{ "threshold": 99.5,  "route":"LIS-JFK" }`)
	item, err := svc.Add(ctx, models.TypePriceAlert, models.ActionCreate, data)
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, models.StatusPending, item.Status)
	assert.Zero(t, item.RetryCount)

	got, err := svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(got.Data))
	assert.Equal(t, models.TypePriceAlert, got.Type)
	assert.Equal(t, models.ActionCreate, got.Action)
	assert.WithinDuration(t, item.Timestamp, got.Timestamp, 0)

	require.Len(t, added, 1)
	assert.Contains(t, string(added[0].Payload), item.ID)
}

func TestQueueService_Validation(t *testing.T) {
	svc := NewQueueService(repository.NewMemoryStore(), nil, nil)
	ctx := context.Background()

	_, err := svc.Add(ctx, models.ItemType("hotel"), models.ActionCreate, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.Add(ctx, models.TypeBooking, models.Action("upsert"), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.Add(ctx, models.TypeBooking, models.ActionCreate, json.RawMessage(`{broken`))
	assert.ErrorIs(t, err, errs.ErrValidation)

	item, err := svc.Add(ctx, models.TypePreference, "", json.RawMessage(`{"email":true}`))
	require.NoError(t, err)
	assert.Equal(t, models.ActionUpdate, item.Action)

	_, err = svc.List(ctx, models.Status("lost"))
	assert.ErrorIs(t, err, errs.ErrValidation)

	pending, err := svc.List(ctx, models.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestQueueService_ReplayBoth(t *testing.T) {
	store := repository.NewMemoryStore()
	queue := NewQueueService(store, nil, nil)
	prefs := NewPreferenceService(store, queue)
	ctx := context.Background()

	_, err := prefs.Update(ctx, json.RawMessage(`{"email":true}`))
	require.NoError(t, err)
	_, err = prefs.Update(ctx, json.RawMessage(`{"email":false}`))
	require.NoError(t, err)

	items, err := queue.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.JSONEq(t, `{"email":true}`, string(items[0].Data))
	assert.JSONEq(t, `{"email":false}`, string(items[1].Data))

	local, err := prefs.Get(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":false}`, string(local))

	_, err = prefs.Update(ctx, json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestOfflineBookingService(t *testing.T) {
	store := repository.NewMemoryStore()
	wake := worker.NewChanWakeQueue(1)
	svc := NewOfflineBookingService(NewQueueService(store, nil, nil), store, wake, nil)
	ctx := context.Background()

	draft, item, err := svc.CreateOfflineBooking(ctx, "u1", "F100", json.RawMessage(`{"seats":2}`))
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusPending, draft.Status)
	assert.Equal(t, models.TypeBooking, item.Type)
	assert.JSONEq(t, `{"seats":2,"userId":"u1","flightId":"F100"}`, string(item.Data))

	tctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	tag, err := wake.Next(tctx)
	require.NoError(t, err)
	assert.Equal(t, models.TagSyncBookings, tag)

	drafts, err := svc.GetUserDrafts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "F100", drafts[0].FlightID)

	_, _, err = svc.CreateOfflineBooking(ctx, "", "F100", nil)
	assert.ErrorIs(t, err, errs.ErrValidation)
	_, _, err = svc.CreateOfflineBooking(ctx, "u1", "F100", json.RawMessage(`"str"`))
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestPriceAlertService(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewPriceAlertService(NewQueueService(store, nil, nil))
	ctx := context.Background()

	del, err := svc.Delete(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, models.ActionDelete, del.Action)
	assert.JSONEq(t, `{"id":"A1"}`, string(del.Data))

	upd, err := svc.Update(ctx, "A2", json.RawMessage(`{"threshold":50}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"A2","threshold":50}`, string(upd.Data))

	_, err = svc.Update(ctx, " ", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestSessionService(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewSessionService(store)
	ctx := context.Background()

	assert.False(t, svc.HasAuthToken(ctx))
	assert.ErrorIs(t, svc.SetAuthToken(ctx, ""), errs.ErrValidation)

	require.NoError(t, svc.SetAuthToken(ctx, "opaque"))
	assert.True(t, svc.HasAuthToken(ctx))

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	require.NoError(t, svc.SetAuthToken(ctx, expired))
	assert.False(t, svc.HasAuthToken(ctx))

	require.NoError(t, svc.ClearAuthToken(ctx))
	assert.False(t, svc.HasAuthToken(ctx))
}
