package syncer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"flightbook/internal/domain"
	"flightbook/internal/errs"
	"flightbook/internal/logging"
	"flightbook/internal/metrics"
	"flightbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TypeFilter restricts a pass to the listed item types. Nil means all types.
type TypeFilter []models.ItemType

// BookingsOnly is the filter used for the sync-bookings wake tag.
var BookingsOnly = TypeFilter{models.TypeBooking}

func (f TypeFilter) match(t models.ItemType) bool {
	if len(f) == 0 {
		return true
	}
	for _, v := range f {
		if v == t {
			return true
		}
	}
	return false
}

func (f TypeFilter) label() string {
	if len(f) == 0 {
		return "all"
	}
	parts := make([]string, len(f))
	for i, v := range f {
		parts[i] = string(v)
	}
	return strings.Join(parts, ",")
}

type Options struct {
	ItemDelay time.Duration
	LockTTL   time.Duration
}

// Orchestrator runs sequential sync passes. Passes from any orchestrator that
// shares the store are serialized through the advisory lock.
type Orchestrator struct {
	store  domain.Store
	exec   *Executor
	events domain.EventPublisher
	opts   Options
	owner  string
	logger *zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	// passMu serializes passes of this instance; the lock row only tells
	// owners apart.
	passMu sync.Mutex
}

// lease tracks one held sync lock. lost is set once a refresh finds the lock
// taken by another owner.
type lease struct {
	lost atomic.Bool
}

func NewOrchestrator(store domain.Store, exec *Executor, opts Options, logger *zerolog.Logger) *Orchestrator {
	if opts.LockTTL <= 0 {
		opts.LockTTL = models.DefaultLockTTL
	}
	if opts.ItemDelay < 0 {
		opts.ItemDelay = 0
	}
	return &Orchestrator{
		store:  store,
		exec:   exec,
		opts:   opts,
		owner:  uuid.NewString(),
		logger: logging.Component(logger, "orchestrator"),
		sleep:  sleepWithContext,
	}
}

// WithEvents publishes SYNC_COMPLETE on pub after every pass.
func (o *Orchestrator) WithEvents(pub domain.EventPublisher) *Orchestrator {
	o.events = pub
	return o
}

// Owner is the lock owner id of this orchestrator.
func (o *Orchestrator) Owner() string {
	return o.owner
}

// SyncAll replays every pending item.
func (o *Orchestrator) SyncAll(ctx context.Context) (models.SyncSummary, error) {
	return o.SyncPending(ctx, nil)
}

// SyncPending replays pending items matching filter in store order.
func (o *Orchestrator) SyncPending(ctx context.Context, filter TypeFilter) (models.SyncSummary, error) {
	var summary models.SyncSummary
	err := o.withLock(ctx, func(l *lease) error {
		items, err := o.store.GetByIndex(ctx, "status", string(models.StatusPending))
		if err != nil {
			return fmt.Errorf("load pending items: %w", err)
		}
		selected := items[:0]
		for _, it := range items {
			if filter.match(it.Type) {
				selected = append(selected, it)
			}
		}
		summary, err = o.run(ctx, l, filter.label(), selected)
		return err
	})
	return summary, err
}

// RetryFailed resets every failed item to pending with retryCount 0 and
// replays exactly that set.
func (o *Orchestrator) RetryFailed(ctx context.Context) (models.SyncSummary, error) {
	var summary models.SyncSummary
	err := o.withLock(ctx, func(l *lease) error {
		failed, err := o.store.GetByIndex(ctx, "status", string(models.StatusFailed))
		if err != nil {
			return fmt.Errorf("load failed items: %w", err)
		}
		now := time.Now().UTC()
		for _, it := range failed {
			it.RetryCount = 0
			it.Status = models.StatusPending
			it.LastError = ""
			it.UpdatedAt = now
			if err := o.store.Put(ctx, it); err != nil {
				o.logger.Warn().Err(err).Str("item_id", it.ID).Msg("failed to reset item")
			}
		}
		o.logger.Info().Int("items", len(failed)).Msg("failed items reset to pending")
		summary, err = o.run(ctx, l, "retry", failed)
		return err
	})
	return summary, err
}

// GetSyncStatus counts items per status. It is a plain read with no isolation
// from concurrent writers.
func (o *Orchestrator) GetSyncStatus(ctx context.Context) (models.StatusCounts, error) {
	items, err := o.store.GetAll(ctx)
	if err != nil {
		return models.StatusCounts{}, fmt.Errorf("load queue: %w", err)
	}
	var c models.StatusCounts
	for _, it := range items {
		switch it.Status {
		case models.StatusPending:
			c.Pending++
		case models.StatusProcessing:
			c.Processing++
		case models.StatusCompleted:
			c.Completed++
		case models.StatusFailed:
			c.Failed++
		}
	}
	c.Total = len(items)

	metrics.SetQueueGauge(string(models.StatusPending), c.Pending)
	metrics.SetQueueGauge(string(models.StatusProcessing), c.Processing)
	metrics.SetQueueGauge(string(models.StatusCompleted), c.Completed)
	metrics.SetQueueGauge(string(models.StatusFailed), c.Failed)
	return c, nil
}

// ClearCompleted deletes every completed item regardless of its retention
// deadline and returns how many were removed.
func (o *Orchestrator) ClearCompleted(ctx context.Context) (int, error) {
	done, err := o.store.GetByIndex(ctx, "status", string(models.StatusCompleted))
	if err != nil {
		return 0, fmt.Errorf("load completed items: %w", err)
	}
	cleared := 0
	for _, it := range done {
		if err := o.store.Delete(ctx, it.ID); err != nil {
			return cleared, fmt.Errorf("delete %s: %w", it.ID, err)
		}
		cleared++
	}
	if cleared > 0 {
		o.logger.Info().Int("items", cleared).Msg("completed items cleared")
	}
	return cleared, nil
}

// PurgeExpired deletes completed items whose retention window has elapsed.
func (o *Orchestrator) PurgeExpired(ctx context.Context) (int, error) {
	n, err := o.store.DeleteExpired(ctx, time.Now())
	if err != nil {
		return n, fmt.Errorf("purge expired items: %w", err)
	}
	if n > 0 {
		o.logger.Info().Int("items", n).Msg("expired items purged")
	}
	return n, nil
}

func (o *Orchestrator) withLock(ctx context.Context, fn func(l *lease) error) error {
	if !o.passMu.TryLock() {
		metrics.IncLockContention()
		o.logger.Debug().Msg("sync pass skipped, this instance is already running one")
		return errs.ErrSyncInProgress
	}
	defer o.passMu.Unlock()

	ok, err := o.store.AcquireLock(ctx, models.SyncLockName, o.owner, o.opts.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		metrics.IncLockContention()
		o.logger.Debug().Msg("sync pass skipped, lock held elsewhere")
		return errs.ErrSyncInProgress
	}

	l := &lease{}
	hbCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go o.heartbeat(hbCtx, l, done)

	defer func() {
		stop()
		<-done
		if err := o.store.ReleaseLock(context.WithoutCancel(ctx), models.SyncLockName, o.owner); err != nil {
			o.logger.Warn().Err(err).Msg("failed to release sync lock")
		}
	}()

	o.recoverInterrupted(ctx)
	return fn(l)
}

// heartbeat refreshes the lock so a live pass is never taken over, however
// long a single request takes.
func (o *Orchestrator) heartbeat(ctx context.Context, l *lease, done chan<- struct{}) {
	defer close(done)
	every := o.opts.LockTTL / 3
	if every < time.Millisecond {
		every = time.Millisecond
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ok, err := o.store.AcquireLock(ctx, models.SyncLockName, o.owner, o.opts.LockTTL)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				o.logger.Warn().Err(err).Msg("failed to refresh sync lock")
				continue
			}
			if !ok {
				l.lost.Store(true)
				o.logger.Warn().Msg("sync lock taken over, stopping pass")
				return
			}
		}
	}
}

// recoverInterrupted returns items stuck in processing to pending. Only the
// lock holder marks items processing, so an old processing item belongs to a
// pass that died mid-attempt.
func (o *Orchestrator) recoverInterrupted(ctx context.Context) {
	items, err := o.store.GetByIndex(ctx, "status", string(models.StatusProcessing))
	if err != nil {
		o.logger.Warn().Err(err).Msg("failed to load processing items")
		return
	}
	cutoff := time.Now().Add(-o.opts.LockTTL)
	for _, it := range items {
		if it.UpdatedAt.After(cutoff) {
			continue
		}
		it.Status = models.StatusPending
		it.UpdatedAt = time.Now().UTC()
		if err := o.store.Put(ctx, it); err != nil {
			o.logger.Warn().Err(err).Str("item_id", it.ID).Msg("failed to reset interrupted item")
			continue
		}
		o.logger.Warn().Str("item_id", it.ID).Str("type", string(it.Type)).Msg("interrupted item returned to pending")
	}
}

// run executes items one at a time with the configured delay between them.
func (o *Orchestrator) run(ctx context.Context, l *lease, trigger string, items []*models.QueueItem) (models.SyncSummary, error) {
	start := time.Now()
	summary := models.SyncSummary{Results: make([]models.SyncResult, 0, len(items))}

	var runErr error
	for i, it := range items {
		if i > 0 {
			if err := o.sleep(ctx, o.opts.ItemDelay); err != nil {
				runErr = err
				break
			}
		}
		if l.lost.Load() {
			runErr = fmt.Errorf("%w: lock lost mid-pass", errs.ErrSyncInProgress)
			break
		}
		summary.Add(o.exec.Execute(ctx, it))
	}

	metrics.ObservePass(trigger, time.Since(start))
	o.logger.Info().
		Str("trigger", trigger).
		Int("total", summary.Total).
		Int("successful", summary.Successful).
		Int("failed", summary.Failed).
		Dur("took", time.Since(start)).
		Msg("sync pass finished")

	if o.events != nil {
		if err := o.events.PublishJSON(models.MessageSyncComplete, models.NewSyncCompleteMessage(summary)); err != nil {
			o.logger.Warn().Err(err).Msg("failed to publish sync completion")
		}
	}
	return summary, runErr
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
