package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flightbook/internal/errs"
	"flightbook/internal/export"
	"flightbook/internal/models"
)

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type enqueueRequest struct {
	Type   models.ItemType `json:"type"`
	Action models.Action   `json:"action"`
	Data   json.RawMessage `json:"data"`
}

func (s *HTTPServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var body enqueueRequest
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.deps.Queue.Add(r.Context(), body.Type, body.Action, body.Data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *HTTPServer) handleListQueue(w http.ResponseWriter, r *http.Request) {
	status := models.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	items, err := s.deps.Queue.List(r.Context(), status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) handleGetQueueItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.deps.Queue.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleExportQueue(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Queue.List(r.Context(), "")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	name := fmt.Sprintf("sync_queue_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := export.WriteQueueReport(w, items); err != nil {
		s.logger.Error().Err(err).Msg("failed to write queue report")
	}
}

type syncStatusResponse struct {
	models.StatusCounts
	Online        bool `json:"online"`
	Authenticated bool `json:"authenticated"`
}

func (s *HTTPServer) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.Sync.GetSyncStatus(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := syncStatusResponse{StatusCounts: counts, Online: true}
	if s.deps.Connectivity != nil {
		resp.Online = s.deps.Connectivity.Online()
	}
	if s.deps.Session != nil {
		resp.Authenticated = s.deps.Session.HasAuthToken(r.Context())
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSyncNow runs a pass inline, or schedules one with ?async=true.
func (s *HTTPServer) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async && s.deps.Scheduler != nil {
		s.deps.Scheduler.TriggerNow()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
		return
	}
	summary, err := s.deps.Sync.SyncAll(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *HTTPServer) handleRetryFailed(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Sync.RetryFailed(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *HTTPServer) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Sync.ClearCompleted(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tag models.WakeTag `json:"tag"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if !body.Tag.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown tag %q", body.Tag))
		return
	}
	if s.deps.Wake == nil {
		// No background agent: registration is a no-op.
		writeJSON(w, http.StatusAccepted, map[string]any{"tag": body.Tag, "registered": false})
		return
	}
	if err := s.deps.Wake.Request(r.Context(), body.Tag); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"tag": body.Tag, "registered": true})
}

func (s *HTTPServer) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	if s.deps.DeadLetters == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []*models.QueueItem{}})
		return
	}
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	items, err := s.deps.DeadLetters.List(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type offlineBookingRequest struct {
	UserID   string          `json:"userId"`
	FlightID string          `json:"flightId"`
	Data     json.RawMessage `json:"data"`
}

func (s *HTTPServer) handleOfflineBooking(w http.ResponseWriter, r *http.Request) {
	var body offlineBookingRequest
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	draft, item, err := s.deps.Bookings.CreateOfflineBooking(r.Context(), body.UserID, body.FlightID, body.Data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"draft": draft, "item": item})
}

func (s *HTTPServer) handleDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.deps.Bookings.GetUserDrafts(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
}

func (s *HTTPServer) readRaw(r *http.Request) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON body", errs.ErrValidation)
	}
	return raw, nil
}

func (s *HTTPServer) handleCreatePriceAlert(w http.ResponseWriter, r *http.Request) {
	raw, err := s.readRaw(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.deps.PriceAlerts.Create(r.Context(), raw)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, item)
}

func (s *HTTPServer) handleUpdatePriceAlert(w http.ResponseWriter, r *http.Request) {
	raw, err := s.readRaw(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.deps.PriceAlerts.Update(r.Context(), r.PathValue("id"), raw)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, item)
}

func (s *HTTPServer) handleDeletePriceAlert(w http.ResponseWriter, r *http.Request) {
	item, err := s.deps.PriceAlerts.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, item)
}

func (s *HTTPServer) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.deps.Preferences.Get(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *HTTPServer) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	raw, err := s.readRaw(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	item, err := s.deps.Preferences.Update(r.Context(), raw)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, item)
}

func (s *HTTPServer) handleSetToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.deps.Session.SetAuthToken(r.Context(), body.Token); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleClearToken(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.ClearAuthToken(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
