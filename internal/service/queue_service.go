package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flightbook/internal/domain"
	"flightbook/internal/errs"
	"flightbook/internal/events"
	"flightbook/internal/logging"
	"flightbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// QueueService is the enqueue side of the sync queue.
type QueueService struct {
	store    domain.QueueStore
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewQueueService(store domain.QueueStore, eventBus domain.EventPublisher, logger *zerolog.Logger) *QueueService {
	return &QueueService{
		store:    store,
		eventBus: eventBus,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

// Add validates and stores a new pending item. Data is kept byte for byte.
func (s *QueueService) Add(ctx context.Context, typ models.ItemType, action models.Action, data json.RawMessage) (*models.QueueItem, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", errs.ErrValidation, typ)
	}
	if action == "" {
		action = defaultAction(typ)
	}
	if !action.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", errs.ErrValidation, action)
	}
	if len(data) == 0 || !json.Valid(data) {
		return nil, fmt.Errorf("%w: data must be JSON", errs.ErrValidation)
	}

	now := s.now().UTC()
	item := &models.QueueItem{
		ID:         uuid.NewString(),
		Type:       typ,
		Action:     action,
		Data:       append(json.RawMessage(nil), data...),
		Timestamp:  now,
		RetryCount: 0,
		Status:     models.StatusPending,
		UpdatedAt:  now,
	}
	if err := s.store.Put(ctx, item); err != nil {
		s.logger.Error().Err(err).Str("type", string(typ)).Msg("failed to enqueue item")
		return nil, fmt.Errorf("enqueue %s: %w", typ, err)
	}

	s.logger.Info().Str("item_id", item.ID).Str("type", string(typ)).Str("action", string(action)).Msg("item queued")
	if s.eventBus != nil {
		payload := events.QueueItemAddedPayload{ItemID: item.ID, Type: item.Type, Action: item.Action}
		if err := s.eventBus.PublishJSON(events.EventQueueItemAdded, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish queue event")
		}
	}
	return item, nil
}

func (s *QueueService) Get(ctx context.Context, id string) (*models.QueueItem, error) {
	return s.store.Get(ctx, id)
}

// List returns all items, or only those with the given status.
func (s *QueueService) List(ctx context.Context, status models.Status) ([]*models.QueueItem, error) {
	if status == "" {
		return s.store.GetAll(ctx)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", errs.ErrValidation, status)
	}
	return s.store.GetByIndex(ctx, "status", string(status))
}

func defaultAction(typ models.ItemType) models.Action {
	if typ == models.TypePreference {
		return models.ActionUpdate
	}
	return models.ActionCreate
}

// withFields sets top-level keys on a JSON object payload.
func withFields(data json.RawMessage, fields map[string]interface{}) (json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
			return nil, fmt.Errorf("%w: data must be a JSON object", errs.ErrValidation)
		}
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		obj[k] = raw
	}
	return json.Marshal(obj)
}
