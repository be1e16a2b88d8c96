package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"flightbook/internal/config"
	"flightbook/internal/errs"
	"flightbook/internal/events"
	"flightbook/internal/logging"
	"flightbook/internal/metrics"
	"flightbook/internal/models"
	"flightbook/internal/service"

	"github.com/rs/zerolog"
)

// SyncController is the orchestrator surface exposed over HTTP.
type SyncController interface {
	SyncAll(ctx context.Context) (models.SyncSummary, error)
	RetryFailed(ctx context.Context) (models.SyncSummary, error)
	ClearCompleted(ctx context.Context) (int, error)
	GetSyncStatus(ctx context.Context) (models.StatusCounts, error)
}

// WakeRegistrar hands a wake tag to the background replay agent.
type WakeRegistrar interface {
	Request(ctx context.Context, tag models.WakeTag) error
}

type Trigger interface {
	TriggerNow()
}

type ConnectivityState interface {
	Online() bool
}

type DeadLetterLister interface {
	List(ctx context.Context, limit int64) ([]*models.QueueItem, error)
}

// Deps wires the server to the services. Optional fields may be nil.
type Deps struct {
	Queue        *service.QueueService
	Bookings     *service.OfflineBookingService
	Session      *service.SessionService
	Preferences  *service.PreferenceService
	PriceAlerts  *service.PriceAlertService
	Sync         SyncController
	Wake         WakeRegistrar
	Scheduler    Trigger
	Connectivity ConnectivityState
	DeadLetters  DeadLetterLister
	Events       *events.EventBus
}

// HTTPServer exposes the queue, the sync controls and the completion stream.
type HTTPServer struct {
	cfg    config.APIConfig
	deps   Deps
	server *http.Server
	auth   *HTTPAuth
	logger *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{cfg: cfg, deps: deps, logger: logging.Component(logger, "http")}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)

	mux.HandleFunc("POST /api/v1/queue", srv.handleEnqueue)
	mux.HandleFunc("GET /api/v1/queue", srv.handleListQueue)
	mux.HandleFunc("GET /api/v1/queue/export", srv.handleExportQueue)
	mux.HandleFunc("GET /api/v1/queue/{id}", srv.handleGetQueueItem)

	mux.HandleFunc("GET /api/v1/sync/status", srv.handleSyncStatus)
	mux.HandleFunc("POST /api/v1/sync", srv.handleSyncNow)
	mux.HandleFunc("POST /api/v1/sync/retry-failed", srv.handleRetryFailed)
	mux.HandleFunc("POST /api/v1/sync/clear-completed", srv.handleClearCompleted)
	mux.HandleFunc("POST /api/v1/sync/register", srv.handleRegister)
	mux.HandleFunc("GET /api/v1/sync/events", srv.handleEvents)
	mux.HandleFunc("GET /api/v1/sync/dead-letters", srv.handleDeadLetters)

	mux.HandleFunc("POST /api/v1/bookings/offline", srv.handleOfflineBooking)
	mux.HandleFunc("GET /api/v1/drafts", srv.handleDrafts)

	mux.HandleFunc("POST /api/v1/price-alerts", srv.handleCreatePriceAlert)
	mux.HandleFunc("PUT /api/v1/price-alerts/{id}", srv.handleUpdatePriceAlert)
	mux.HandleFunc("DELETE /api/v1/price-alerts/{id}", srv.handleDeletePriceAlert)
	mux.HandleFunc("GET /api/v1/preferences", srv.handleGetPreferences)
	mux.HandleFunc("PUT /api/v1/preferences", srv.handleUpdatePreferences)

	mux.HandleFunc("PUT /api/v1/session/token", srv.handleSetToken)
	mux.HandleFunc("DELETE /api/v1/session/token", srv.handleClearToken)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("dur", time.Since(start)).
			Msg("http request")
	})
}

// statusCode maps domain errors onto HTTP statuses.
func statusCode(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, errs.ErrUnsupportedIndex):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal error"
	}
	writeError(w, code, msg)
}

func decodeBody(r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body", errs.ErrValidation)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
