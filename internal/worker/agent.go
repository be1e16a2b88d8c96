package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flightbook/internal/domain"
	"flightbook/internal/errs"
	"flightbook/internal/logging"
	"flightbook/internal/models"
	"flightbook/internal/syncer"

	"github.com/rs/zerolog"
)

// Passer runs one filtered sync pass.
type Passer interface {
	SyncPending(ctx context.Context, filter syncer.TypeFilter) (models.SyncSummary, error)
}

// Connectivity gates background passes on the backend being reachable.
type Connectivity interface {
	Online() bool
	Subscribe() <-chan bool
}

// ReplayAgent replays pending items whenever a wake tag arrives, independent
// of any open client. It uses the same executor as the orchestrator. Tags
// that arrive while offline are held until connectivity returns.
type ReplayAgent struct {
	passer      Passer
	wake        domain.WakeQueue
	broadcaster domain.Broadcaster
	backoff     Backoff
	logger      *zerolog.Logger

	online      Connectivity
	transitions <-chan bool

	mu       sync.Mutex
	deferred map[models.WakeTag]bool
}

func NewReplayAgent(passer Passer, wake domain.WakeQueue, broadcaster domain.Broadcaster, logger *zerolog.Logger) *ReplayAgent {
	return &ReplayAgent{
		passer:      passer,
		wake:        wake,
		broadcaster: broadcaster,
		backoff:     Backoff{InitialDelay: time.Second, MaxDelay: 30 * time.Second},
		logger:      logging.Component(logger, "replay_agent"),
		deferred:    make(map[models.WakeTag]bool),
	}
}

// WithConnectivity holds wakes while online reports false and replays them on
// the next transition to online.
func (a *ReplayAgent) WithConnectivity(online Connectivity) *ReplayAgent {
	a.online = online
	a.transitions = online.Subscribe()
	return a
}

// Register asks for a background pass for tag.
func (a *ReplayAgent) Register(ctx context.Context, tag models.WakeTag) error {
	return a.wake.Request(ctx, tag)
}

// Run consumes wake tags until ctx is done.
func (a *ReplayAgent) Run(ctx context.Context) {
	a.logger.Info().Msg("replay agent started")
	defer a.logger.Info().Msg("replay agent stopped")

	tags := make(chan models.WakeTag)
	go a.readWake(ctx, tags)

	for {
		select {
		case <-ctx.Done():
			return
		case tag := <-tags:
			a.HandleWake(ctx, tag)
		case up := <-a.transitions:
			if up {
				a.replayDeferred(ctx)
			}
		}
	}
}

func (a *ReplayAgent) readWake(ctx context.Context, out chan<- models.WakeTag) {
	failures := 0
	for {
		tag, err := a.wake.Next(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			delay := a.backoff.NextDelay(failures)
			a.logger.Error().Err(err).Dur("retry_in", delay).Msg("failed to read wake queue")
			if !sleepCtx(ctx.Done(), delay) {
				return
			}
			continue
		}
		failures = 0
		select {
		case out <- tag:
		case <-ctx.Done():
			return
		}
	}
}

// replayDeferred runs one pass for the wakes held while offline. sync-all
// covers sync-bookings.
func (a *ReplayAgent) replayDeferred(ctx context.Context) {
	a.mu.Lock()
	held := a.deferred
	a.deferred = make(map[models.WakeTag]bool)
	a.mu.Unlock()

	switch {
	case held[models.TagSyncAll]:
		a.HandleWake(ctx, models.TagSyncAll)
	case held[models.TagSyncBookings]:
		a.HandleWake(ctx, models.TagSyncBookings)
	}
}

// HandleWake runs one pass for tag. Errors, including panics, are logged and
// swallowed so the next wake still runs.
func (a *ReplayAgent) HandleWake(ctx context.Context, tag models.WakeTag) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Str("tag", string(tag)).Msg("background pass panicked")
		}
	}()

	if a.online != nil && !a.online.Online() {
		a.mu.Lock()
		a.deferred[tag] = true
		a.mu.Unlock()
		a.logger.Debug().Str("tag", string(tag)).Msg("offline, wake held until connectivity returns")
		return
	}

	var filter syncer.TypeFilter
	if tag == models.TagSyncBookings {
		filter = syncer.BookingsOnly
	}

	summary, err := a.passer.SyncPending(ctx, filter)
	switch {
	case errors.Is(err, errs.ErrSyncInProgress):
		a.logger.Debug().Str("tag", string(tag)).Msg("another pass is running, wake skipped")
		return
	case err != nil:
		a.logger.Error().Err(err).Str("tag", string(tag)).Msg("background pass failed")
		return
	}

	a.logger.Info().
		Str("tag", string(tag)).
		Int("total", summary.Total).
		Int("successful", summary.Successful).
		Int("failed", summary.Failed).
		Msg("background pass finished")

	if a.broadcaster == nil {
		return
	}
	if err := a.broadcaster.Broadcast(ctx, models.NewSyncCompleteMessage(summary)); err != nil {
		a.logger.Warn().Err(fmt.Errorf("broadcast: %w", err)).Msg("failed to broadcast sync completion")
	}
}
