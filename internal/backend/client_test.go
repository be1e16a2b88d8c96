package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	method      string
	path        string
	auth        string
	contentType string
	body        string
}

func newTestBackend(t *testing.T, status int, reply string) (*Client, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		got.method = r.Method
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		got.contentType = r.Header.Get("Content-Type")
		got.body = string(data)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "/api/health", nil), got
}

func TestClient_Routes(t *testing.T) {
	ctx := context.Background()
	body := json.RawMessage(`{"flightId":"F1"}`)

	cases := []struct {
		name   string
		call   func(c *Client) error
		method string
		path   string
		body   string
	}{
		{"CreateBooking", func(c *Client) error { return c.CreateBooking(ctx, "tok", body) }, http.MethodPost, "/api/bookings", string(body)},
		{"CreatePriceAlert", func(c *Client) error { return c.CreatePriceAlert(ctx, "tok", body) }, http.MethodPost, "/api/price-alerts", string(body)},
		{"UpdatePriceAlert", func(c *Client) error { return c.UpdatePriceAlert(ctx, "tok", "A1", body) }, http.MethodPut, "/api/price-alerts/A1", string(body)},
		{"UpdatePreferences", func(c *Client) error { return c.UpdatePreferences(ctx, "tok", body) }, http.MethodPut, "/api/notifications/preferences", string(body)},
		{"ProcessPayment", func(c *Client) error { return c.ProcessPayment(ctx, "tok", body) }, http.MethodPost, "/api/payments/process", string(body)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, got := newTestBackend(t, http.StatusOK, `{}`)
			require.NoError(t, tc.call(c))
			assert.Equal(t, tc.method, got.method)
			assert.Equal(t, tc.path, got.path)
			assert.Equal(t, "Bearer tok", got.auth)
			assert.Equal(t, "application/json", got.contentType)
			assert.Equal(t, tc.body, got.body)
		})
	}
}

func TestClient_DeleteSendsNoBody(t *testing.T) {
	c, got := newTestBackend(t, http.StatusOK, "")
	require.NoError(t, c.DeletePriceAlert(context.Background(), "tok", "A1"))

	assert.Equal(t, http.MethodDelete, got.method)
	assert.Equal(t, "/api/price-alerts/A1", got.path)
	assert.Equal(t, "Bearer tok", got.auth)
	assert.Empty(t, got.contentType)
	assert.Empty(t, got.body)
}

func TestClient_Errors(t *testing.T) {
	t.Run("BackendMessage", func(t *testing.T) {
		c, _ := newTestBackend(t, http.StatusConflict, `{"error":"seat taken"}`)
		err := c.CreateBooking(context.Background(), "tok", json.RawMessage(`{}`))

		var httpErr *HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusConflict, httpErr.StatusCode)
		assert.Equal(t, "seat taken", err.Error())
	})

	t.Run("MessageField", func(t *testing.T) {
		c, _ := newTestBackend(t, http.StatusBadRequest, `{"message":"bad flight"}`)
		err := c.ProcessPayment(context.Background(), "tok", json.RawMessage(`{}`))
		assert.EqualError(t, err, "bad flight")
	})

	t.Run("GenericMessage", func(t *testing.T) {
		c, _ := newTestBackend(t, http.StatusInternalServerError, `oops`)
		err := c.CreateBooking(context.Background(), "tok", json.RawMessage(`{}`))
		assert.EqualError(t, err, "HTTP 500")
	})

	t.Run("NetworkFailure", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", "/api/health", nil)
		assert.Error(t, c.CreateBooking(context.Background(), "tok", json.RawMessage(`{}`)))
	})
}

func TestClient_Health(t *testing.T) {
	c, got := newTestBackend(t, http.StatusOK, `{"status":"ok"}`)
	require.NoError(t, c.Health(context.Background()))
	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "/api/health", got.path)
	assert.Empty(t, got.auth)
}

func TestClient_ContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "/api/health", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.CreateBooking(ctx, "tok", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
