package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"flightbook/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestHTTPAuth(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys: []config.APIClientKey{
				{Key: "reader", Permissions: []string{permReadQueue}},
				{Key: "admin"},
			},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 100, Burst: 200},
	}
	auth := NewHTTPAuth(cfg)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := auth.Wrap(ok)

	do := func(method, path, key string) int {
		req := httptest.NewRequest(method, path, nil)
		if key != "" {
			req.Header.Set("x-api-key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("HealthIsPublic", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(http.MethodGet, "/healthz", ""))
	})

	t.Run("MissingKey", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/api/v1/queue", ""))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/api/v1/queue", "nope"))
	})

	t.Run("ReaderCanRead", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/v1/queue", "reader"))
		assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/v1/sync/status", "reader"))
	})

	t.Run("ReaderCannotWrite", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/api/v1/queue", "reader"))
		assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/api/v1/sync", "reader"))
		assert.Equal(t, http.StatusForbidden, do(http.MethodPut, "/api/v1/session/token", "reader"))
	})

	t.Run("EmptyPermissionsAllowAll", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/v1/sync", "admin"))
	})
}

func TestHTTPAuthRateLimit(t *testing.T) {
	cfg := config.APIConfig{
		RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 1},
	}
	h := NewHTTPAuth(cfg).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// other clients have their own bucket
	other := httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	l := newRateLimiter(config.APIRateLimitConfig{})
	for i := 0; i < 50; i++ {
		assert.True(t, l.allow("k"))
	}
}
