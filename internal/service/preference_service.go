package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"flightbook/internal/domain"
	"flightbook/internal/errs"
	"flightbook/internal/models"
)

// PrefNotifications is the preferences key for the local notification settings.
const PrefNotifications = "notificationPreferences"

// PreferenceService stores notification preferences locally and queues the
// full object for replay.
type PreferenceService struct {
	prefs domain.PreferenceStore
	queue *QueueService
}

func NewPreferenceService(prefs domain.PreferenceStore, queue *QueueService) *PreferenceService {
	return &PreferenceService{prefs: prefs, queue: queue}
}

// Update replaces the preference object. Two updates made offline are both
// replayed in order.
func (s *PreferenceService) Update(ctx context.Context, prefs json.RawMessage) (*models.QueueItem, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(prefs, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("%w: preferences must be a JSON object", errs.ErrValidation)
	}
	if err := s.prefs.SetPreference(ctx, PrefNotifications, prefs); err != nil {
		return nil, fmt.Errorf("store preferences: %w", err)
	}
	return s.queue.Add(ctx, models.TypePreference, models.ActionUpdate, prefs)
}

// Get returns the local preference object, or an empty object.
func (s *PreferenceService) Get(ctx context.Context) (json.RawMessage, error) {
	v, err := s.prefs.GetPreference(ctx, PrefNotifications)
	if errors.Is(err, errs.ErrNotFound) {
		return json.RawMessage(`{}`), nil
	}
	return v, err
}
