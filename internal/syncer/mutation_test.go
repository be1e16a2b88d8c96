package syncer

import (
	"encoding/json"
	"testing"

	"flightbook/internal/errs"
	"flightbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	item := func(typ models.ItemType, action models.Action, data string) *models.QueueItem {
		return &models.QueueItem{ID: "x", Type: typ, Action: action, Data: json.RawMessage(data)}
	}

	t.Run("Booking", func(t *testing.T) {
		m, err := Decode(item(models.TypeBooking, "", `{"userId":"u1","flightId":"F9","seats":2}`))
		require.NoError(t, err)
		b, ok := m.(BookingMutation)
		require.True(t, ok)
		assert.Equal(t, models.BookingRef{UserID: "u1", FlightID: "F9"}, b.Ref)
	})

	t.Run("BookingWithNumericIDsHasNoRef", func(t *testing.T) {
		m, err := Decode(item(models.TypeBooking, "", `{"userId":7,"flightId":"F9"}`))
		require.NoError(t, err)
		assert.Equal(t, models.BookingRef{FlightID: "F9"}, m.(BookingMutation).Ref)
	})

	t.Run("PriceAlertDeleteDropsBody", func(t *testing.T) {
		m, err := Decode(item(models.TypePriceAlert, models.ActionDelete, `{"id":"A1"}`))
		require.NoError(t, err)
		pa := m.(PriceAlertMutation)
		assert.Equal(t, "A1", pa.ID)
		assert.Nil(t, pa.Body)
	})

	t.Run("PriceAlertNumericID", func(t *testing.T) {
		m, err := Decode(item(models.TypePriceAlert, models.ActionUpdate, `{"id":42,"max":100}`))
		require.NoError(t, err)
		assert.Equal(t, "42", m.(PriceAlertMutation).ID)
	})

	t.Run("PreferenceIgnoresAction", func(t *testing.T) {
		m, err := Decode(item(models.TypePreference, models.ActionCreate, `{"email":true}`))
		require.NoError(t, err)
		assert.IsType(t, PreferenceMutation{}, m)
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := Decode(item("hotel", "", `{}`))
		assert.ErrorIs(t, err, errs.ErrUnknownItemType)

		for _, body := range []string{`[1,2]`, `"seat 12A"`, `null`, `7`} {
			_, err = Decode(item(models.TypeBooking, models.ActionCreate, body))
			assert.ErrorIs(t, err, errs.ErrInvalidPayload, body)
		}

		_, err = Decode(item(models.TypePayment, "", ``))
		assert.ErrorIs(t, err, errs.ErrInvalidPayload)

		_, err = Decode(item(models.TypePriceAlert, models.ActionUpdate, `{"id":""}`))
		assert.ErrorIs(t, err, errs.ErrInvalidPayload)

		_, err = Decode(item(models.TypePriceAlert, "", `{"id":"A1"}`))
		assert.ErrorIs(t, err, errs.ErrInvalidPayload)
	})
}

func TestTokenSource(t *testing.T) {
	store := newPrefStore(t)
	ts := NewTokenSource(store)

	_, err := ts.Token(t.Context())
	assert.ErrorIs(t, err, errs.ErrNotAuthenticated)

	require.NoError(t, store.SetPreference(t.Context(), models.PrefAuthToken, json.RawMessage(`"  "`)))
	_, err = ts.Token(t.Context())
	assert.ErrorIs(t, err, errs.ErrNotAuthenticated)

	require.NoError(t, store.SetPreference(t.Context(), models.PrefAuthToken, json.RawMessage(`"opaque-token"`)))
	tok, err := ts.Token(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", tok)
}
