// Package syncer replays queued mutations against the backend. Executor makes
// one attempt per item and Orchestrator runs sequential passes over the queue.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flightbook/internal/domain"
	"flightbook/internal/errs"
	"flightbook/internal/logging"
	"flightbook/internal/metrics"
	"flightbook/internal/models"

	"github.com/rs/zerolog"
)

// Policy holds the retry cap and how long completed items are kept.
type Policy struct {
	MaxRetries      int
	RetentionWindow time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxRetries: models.DefaultMaxRetries, RetentionWindow: models.DefaultRetentionWindow}
}

// Executor performs exactly one replay attempt per call. It is shared by the
// orchestrator and the background agent.
type Executor struct {
	store      domain.Store
	backend    domain.Backend
	tokens     *TokenSource
	deadLetter domain.DeadLetter
	policy     Policy
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewExecutor(store domain.Store, backend domain.Backend, policy Policy, logger *zerolog.Logger) *Executor {
	if policy.MaxRetries < 1 {
		policy.MaxRetries = models.DefaultMaxRetries
	}
	return &Executor{
		store:   store,
		backend: backend,
		tokens:  NewTokenSource(store),
		policy:  policy,
		logger:  logging.Component(logger, "executor"),
		now:     time.Now,
	}
}

// WithDeadLetter sets the sink for items that reach the retry cap.
func (e *Executor) WithDeadLetter(dl domain.DeadLetter) *Executor {
	e.deadLetter = dl
	return e
}

// Execute runs one attempt and records the outcome on the item. It never
// panics and never returns an error; failures are reported in the result.
func (e *Executor) Execute(ctx context.Context, item *models.QueueItem) (res models.SyncResult) {
	item = item.Clone()
	res.ItemID = item.ID

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Str("item_id", item.ID).Msg("replay attempt panicked")
			res = e.fail(ctx, item, fmt.Errorf("internal error: %v", r), false)
		}
	}()

	item.Status = models.StatusProcessing
	item.UpdatedAt = e.now().UTC()
	if err := e.store.Put(ctx, item); err != nil {
		e.logger.Warn().Err(err).Str("item_id", item.ID).Msg("failed to mark item processing")
	}

	token, err := e.tokens.Token(ctx)
	if err != nil {
		return e.fail(ctx, item, err, false)
	}

	mut, err := Decode(item)
	if err != nil {
		return e.fail(ctx, item, err, true)
	}

	if err := e.dispatch(ctx, token, mut); err != nil {
		return e.fail(ctx, item, err, false)
	}

	if b, ok := mut.(BookingMutation); ok {
		e.reconcileDrafts(ctx, b.Ref)
	}
	return e.succeed(ctx, item)
}

func (e *Executor) dispatch(ctx context.Context, token string, mut Mutation) error {
	switch m := mut.(type) {
	case BookingMutation:
		return e.backend.CreateBooking(ctx, token, m.Body)
	case PriceAlertMutation:
		switch m.Action {
		case models.ActionCreate:
			return e.backend.CreatePriceAlert(ctx, token, m.Body)
		case models.ActionUpdate:
			return e.backend.UpdatePriceAlert(ctx, token, m.ID, m.Body)
		case models.ActionDelete:
			return e.backend.DeletePriceAlert(ctx, token, m.ID)
		}
		return fmt.Errorf("%w: price alert action %q", errs.ErrInvalidPayload, m.Action)
	case PreferenceMutation:
		return e.backend.UpdatePreferences(ctx, token, m.Body)
	case PaymentMutation:
		return e.backend.ProcessPayment(ctx, token, m.Body)
	}
	return fmt.Errorf("%w: %T", errs.ErrUnknownItemType, mut)
}

func (e *Executor) succeed(ctx context.Context, item *models.QueueItem) models.SyncResult {
	now := e.now().UTC()
	expires := now.Add(e.policy.RetentionWindow)
	item.Status = models.StatusCompleted
	item.LastError = ""
	item.UpdatedAt = now
	item.ExpiresAt = &expires
	e.save(ctx, item)

	metrics.ObserveAttempt(string(item.Type), true)
	e.logAttempt(e.logger.Info(), item).Msg("item synced")
	return models.SyncResult{Success: true, ItemID: item.ID}
}

// fail counts the attempt. terminal skips the remaining retries.
func (e *Executor) fail(ctx context.Context, item *models.QueueItem, cause error, terminal bool) models.SyncResult {
	item.RetryCount++
	item.LastError = cause.Error()
	item.UpdatedAt = e.now().UTC()
	if terminal || item.RetryCount >= e.policy.MaxRetries {
		item.Status = models.StatusFailed
	} else {
		item.Status = models.StatusPending
	}
	e.save(ctx, item)

	metrics.ObserveAttempt(string(item.Type), false)
	ev := e.logger.Warn()
	if errors.Is(cause, errs.ErrUnknownItemType) || errors.Is(cause, errs.ErrInvalidPayload) {
		ev = e.logger.Error()
	}
	e.logAttempt(ev.Err(cause), item).Msg("item sync failed")

	if item.Status == models.StatusFailed && e.deadLetter != nil {
		if err := e.deadLetter.Push(ctx, item); err != nil {
			e.logger.Warn().Err(err).Str("item_id", item.ID).Msg("failed to push dead letter")
		}
	}
	return models.SyncResult{Success: false, ItemID: item.ID, Error: cause.Error()}
}

func (e *Executor) save(ctx context.Context, item *models.QueueItem) {
	if err := e.store.Put(ctx, item); err != nil {
		e.logger.Error().Err(err).Str("item_id", item.ID).Str("status", string(item.Status)).Msg("failed to record attempt outcome")
	}
}

// reconcileDrafts marks every draft of the same user and flight as synced.
func (e *Executor) reconcileDrafts(ctx context.Context, ref models.BookingRef) {
	if ref.UserID == "" || ref.FlightID == "" {
		return
	}
	drafts, err := e.store.GetDraftsByUser(ctx, ref.UserID)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", ref.UserID).Msg("failed to load drafts")
		return
	}
	for _, d := range drafts {
		if d.FlightID != ref.FlightID || d.Status == models.DraftStatusSynced {
			continue
		}
		d.Status = models.DraftStatusSynced
		d.UpdatedAt = e.now().UTC()
		if err := e.store.PutDraft(ctx, d); err != nil {
			e.logger.Warn().Err(err).Str("draft_id", d.ID).Msg("failed to mark draft synced")
		}
	}
}

func (e *Executor) logAttempt(ev *zerolog.Event, item *models.QueueItem) *zerolog.Event {
	return ev.
		Str("item_id", item.ID).
		Str("type", string(item.Type)).
		Str("action", string(item.Action)).
		Int("retry_count", item.RetryCount).
		Str("status", string(item.Status))
}
