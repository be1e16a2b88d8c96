package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"flightbook/internal/domain"
	"flightbook/internal/errs"
	"flightbook/internal/logging"
	"flightbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OfflineBookingService queues bookings made without connectivity and keeps a
// local draft for display until the booking is replayed.
type OfflineBookingService struct {
	queue  *QueueService
	drafts domain.DraftStore
	wake   domain.WakeQueue
	logger *zerolog.Logger
}

// NewOfflineBookingService builds the service. A nil wake queue disables
// background registration.
func NewOfflineBookingService(queue *QueueService, drafts domain.DraftStore, wake domain.WakeQueue, logger *zerolog.Logger) *OfflineBookingService {
	return &OfflineBookingService{
		queue:  queue,
		drafts: drafts,
		wake:   wake,
		logger: logging.OrNop(logger),
	}
}

// CreateOfflineBooking stores a pending draft, enqueues the booking and asks
// the background agent for a bookings pass.
func (s *OfflineBookingService) CreateOfflineBooking(ctx context.Context, userID, flightID string, data json.RawMessage) (*models.BookingDraft, *models.QueueItem, error) {
	userID, flightID = strings.TrimSpace(userID), strings.TrimSpace(flightID)
	if userID == "" || flightID == "" {
		return nil, nil, fmt.Errorf("%w: user id and flight id are required", errs.ErrValidation)
	}

	body, err := withFields(data, map[string]interface{}{"userId": userID, "flightId": flightID})
	if err != nil {
		return nil, nil, err
	}

	item, err := s.queue.Add(ctx, models.TypeBooking, models.ActionCreate, body)
	if err != nil {
		return nil, nil, err
	}

	draft := &models.BookingDraft{
		ID:        uuid.NewString(),
		UserID:    userID,
		FlightID:  flightID,
		Data:      body,
		Status:    models.DraftStatusPending,
		CreatedAt: item.Timestamp,
		UpdatedAt: item.Timestamp,
	}
	if err := s.drafts.PutDraft(ctx, draft); err != nil {
		// The queued item is what gets replayed; the draft is display only.
		s.logger.Error().Err(err).Str("item_id", item.ID).Msg("failed to store booking draft")
	}

	if s.wake != nil {
		if err := s.wake.Request(ctx, models.TagSyncBookings); err != nil {
			s.logger.Warn().Err(err).Msg("background sync registration failed")
		}
	}
	return draft, item, nil
}

func (s *OfflineBookingService) GetUserDrafts(ctx context.Context, userID string) ([]*models.BookingDraft, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", errs.ErrValidation)
	}
	return s.drafts.GetDraftsByUser(ctx, userID)
}
