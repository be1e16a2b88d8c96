package worker

import (
	"context"
	"errors"
	"time"

	"flightbook/internal/errs"
	"flightbook/internal/logging"
	"flightbook/internal/models"

	"github.com/rs/zerolog"
)

// SyncRunner is the orchestrator surface the scheduler drives.
type SyncRunner interface {
	SyncAll(ctx context.Context) (models.SyncSummary, error)
	PurgeExpired(ctx context.Context) (int, error)
}

// OnlineSource reports connectivity.
type OnlineSource interface {
	Online() bool
	Transitions() <-chan bool
}

// Scheduler starts foreground passes: immediately when connectivity returns,
// periodically while online, and on demand. It also sweeps expired items.
type Scheduler struct {
	runner        SyncRunner
	online        OnlineSource
	interval      time.Duration
	purgeInterval time.Duration
	manual        chan struct{}
	logger        *zerolog.Logger
}

func NewScheduler(runner SyncRunner, online OnlineSource, interval, purgeInterval time.Duration, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = models.DefaultSyncInterval
	}
	if purgeInterval <= 0 {
		purgeInterval = models.DefaultPurgeInterval
	}
	return &Scheduler{
		runner:        runner,
		online:        online,
		interval:      interval,
		purgeInterval: purgeInterval,
		manual:        make(chan struct{}, 1),
		logger:        logging.Component(logger, "scheduler"),
	}
}

// TriggerNow requests a pass without waiting for it. Requests made while one
// is already waiting are merged.
func (s *Scheduler) TriggerNow() {
	select {
	case s.manual <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	purge := time.NewTicker(s.purgeInterval)
	defer purge.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")
	defer s.logger.Info().Msg("scheduler stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case up := <-s.online.Transitions():
			if up {
				s.pass(ctx, "online")
			}
		case <-ticker.C:
			if s.online.Online() {
				s.pass(ctx, "timer")
			}
		case <-s.manual:
			s.pass(ctx, "manual")
		case <-purge.C:
			if _, err := s.runner.PurgeExpired(ctx); err != nil {
				s.logger.Error().Err(err).Msg("retention sweep failed")
			}
		}
	}
}

func (s *Scheduler) pass(ctx context.Context, trigger string) {
	_, err := s.runner.SyncAll(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrSyncInProgress):
		s.logger.Debug().Str("trigger", trigger).Msg("pass skipped, another is running")
	case ctx.Err() != nil:
	default:
		s.logger.Error().Err(err).Str("trigger", trigger).Msg("sync pass failed")
	}
}
