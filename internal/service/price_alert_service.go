package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"flightbook/internal/errs"
	"flightbook/internal/models"
)

// PriceAlertService queues price alert mutations.
type PriceAlertService struct {
	queue *QueueService
}

func NewPriceAlertService(queue *QueueService) *PriceAlertService {
	return &PriceAlertService{queue: queue}
}

func (s *PriceAlertService) Create(ctx context.Context, data json.RawMessage) (*models.QueueItem, error) {
	return s.queue.Add(ctx, models.TypePriceAlert, models.ActionCreate, data)
}

// Update queues a PUT of data with id merged in.
func (s *PriceAlertService) Update(ctx context.Context, id string, data json.RawMessage) (*models.QueueItem, error) {
	body, err := s.withID(id, data)
	if err != nil {
		return nil, err
	}
	return s.queue.Add(ctx, models.TypePriceAlert, models.ActionUpdate, body)
}

func (s *PriceAlertService) Delete(ctx context.Context, id string) (*models.QueueItem, error) {
	body, err := s.withID(id, nil)
	if err != nil {
		return nil, err
	}
	return s.queue.Add(ctx, models.TypePriceAlert, models.ActionDelete, body)
}

func (s *PriceAlertService) withID(id string, data json.RawMessage) (json.RawMessage, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: alert id is required", errs.ErrValidation)
	}
	return withFields(data, map[string]interface{}{"id": id})
}
