package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"flightbook/internal/domain"
	"flightbook/internal/errs"
	"flightbook/internal/logging"
	"flightbook/internal/models"

	"github.com/rs/zerolog"
)

const defaultRecoveryInterval = time.Minute

// FailoverStore writes to the durable primary and degrades to the in-memory
// fallback when the primary fails. Items written while degraded live in memory
// only until the primary recovers, at which point they are flushed back.
type FailoverStore struct {
	primary  domain.Store
	fallback domain.Store
	logger   *zerolog.Logger

	isDown    atomic.Bool
	lastCheck atomic.Int64

	recoveryInterval time.Duration
}

var _ domain.Store = (*FailoverStore)(nil)

// snapshotter lists the non-queue records a fallback holds so they can be
// flushed on recovery.
type snapshotter interface {
	Drafts() []*models.BookingDraft
	Preferences() map[string]json.RawMessage
}

func NewFailoverStore(primary, fallback domain.Store, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:          primary,
		fallback:         fallback,
		logger:           logging.OrNop(logger),
		recoveryInterval: defaultRecoveryInterval,
	}
}

// Degraded reports whether writes currently go to memory only.
func (r *FailoverStore) Degraded() bool {
	return r.isDown.Load()
}

// usePrimary reports whether the primary should be tried, allowing a recovery
// attempt once per recovery interval while degraded.
func (r *FailoverStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > r.recoveryInterval
}

func (r *FailoverStore) markDown(op string, err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Str("op", op).Msg("durable store failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverStore) markUp(ctx context.Context) {
	if !r.isDown.Swap(false) {
		return
	}
	r.logger.Info().Msg("durable store recovered")
	r.flush(ctx)
}

// flush moves memory-only records back into the primary.
func (r *FailoverStore) flush(ctx context.Context) {
	items, err := r.fallback.GetAll(ctx)
	if err != nil {
		return
	}
	for _, it := range items {
		if err := r.primary.Put(ctx, it); err != nil {
			r.markDown("flush", err)
			return
		}
		_ = r.fallback.Delete(ctx, it.ID)
	}

	var drafts []*models.BookingDraft
	var prefs map[string]json.RawMessage
	if snap, ok := r.fallback.(snapshotter); ok {
		drafts, prefs = snap.Drafts(), snap.Preferences()
	}
	for _, d := range drafts {
		if err := r.primary.PutDraft(ctx, d); err != nil {
			r.markDown("flush_drafts", err)
			return
		}
		_ = r.fallback.DeleteDraft(ctx, d.ID)
	}
	for key, value := range prefs {
		if err := r.primary.SetPreference(ctx, key, value); err != nil {
			r.markDown("flush_preferences", err)
			return
		}
		_ = r.fallback.DeletePreference(ctx, key)
	}

	if len(items)+len(drafts)+len(prefs) > 0 {
		r.logger.Info().
			Int("items", len(items)).
			Int("drafts", len(drafts)).
			Int("preferences", len(prefs)).
			Msg("flushed memory-only records to durable store")
	}
}

// write runs op against the primary, degrading to the fallback on failure.
func (r *FailoverStore) write(ctx context.Context, name string, op func(domain.Store) error) error {
	if r.usePrimary() {
		err := op(r.primary)
		if err == nil {
			r.markUp(ctx)
			return nil
		}
		r.markDown(name, err)
	}
	if err := op(r.fallback); err != nil {
		return fmt.Errorf("%s: %w: %v", name, errs.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *FailoverStore) Put(ctx context.Context, item *models.QueueItem) error {
	if err := r.write(ctx, "put", func(s domain.Store) error { return s.Put(ctx, item) }); err != nil {
		return err
	}
	if !r.isDown.Load() {
		// A newer durable copy supersedes any memory-only one.
		_ = r.fallback.Delete(ctx, item.ID)
	}
	return nil
}

func (r *FailoverStore) Get(ctx context.Context, id string) (*models.QueueItem, error) {
	if item, err := r.fallback.Get(ctx, id); err == nil {
		return item, nil
	}
	if !r.usePrimary() {
		return nil, errs.ErrNotFound
	}
	item, err := r.primary.Get(ctx, id)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		r.markDown("get", err)
	}
	return item, err
}

func (r *FailoverStore) GetAll(ctx context.Context) ([]*models.QueueItem, error) {
	return r.readMerged(ctx, "get_all", func(s domain.Store) ([]*models.QueueItem, error) { return s.GetAll(ctx) })
}

func (r *FailoverStore) GetByIndex(ctx context.Context, field, value string) ([]*models.QueueItem, error) {
	return r.readMerged(ctx, "get_by_index", func(s domain.Store) ([]*models.QueueItem, error) {
		return s.GetByIndex(ctx, field, value)
	})
}

// readMerged returns primary results overlaid with memory-only items.
func (r *FailoverStore) readMerged(ctx context.Context, name string, read func(domain.Store) ([]*models.QueueItem, error)) ([]*models.QueueItem, error) {
	mem, err := read(r.fallback)
	if err != nil {
		return nil, err
	}

	var durable []*models.QueueItem
	if r.usePrimary() {
		durable, err = read(r.primary)
		if err != nil {
			if errors.Is(err, errs.ErrUnsupportedIndex) {
				return nil, err
			}
			r.markDown(name, err)
			durable = nil
		}
	}

	if len(mem) == 0 {
		return durable, nil
	}

	overlay := make(map[string]*models.QueueItem, len(mem))
	for _, it := range mem {
		overlay[it.ID] = it
	}
	out := make([]*models.QueueItem, 0, len(durable)+len(mem))
	for _, it := range durable {
		if m, ok := overlay[it.ID]; ok {
			out = append(out, m)
			delete(overlay, it.ID)
			continue
		}
		out = append(out, it)
	}
	for _, it := range mem {
		if _, ok := overlay[it.ID]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *FailoverStore) Delete(ctx context.Context, id string) error {
	_ = r.fallback.Delete(ctx, id)
	if !r.usePrimary() {
		return nil
	}
	if err := r.primary.Delete(ctx, id); err != nil {
		r.markDown("delete", err)
		return err
	}
	return nil
}

func (r *FailoverStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	n, _ := r.fallback.DeleteExpired(ctx, now)
	if !r.usePrimary() {
		return n, nil
	}
	m, err := r.primary.DeleteExpired(ctx, now)
	if err != nil {
		r.markDown("delete_expired", err)
		return n, err
	}
	return n + m, nil
}

func (r *FailoverStore) PutDraft(ctx context.Context, draft *models.BookingDraft) error {
	if err := r.write(ctx, "put_draft", func(s domain.Store) error { return s.PutDraft(ctx, draft) }); err != nil {
		return err
	}
	if !r.isDown.Load() {
		_ = r.fallback.DeleteDraft(ctx, draft.ID)
	}
	return nil
}

func (r *FailoverStore) GetDraft(ctx context.Context, id string) (*models.BookingDraft, error) {
	if d, err := r.fallback.GetDraft(ctx, id); err == nil {
		return d, nil
	}
	if !r.usePrimary() {
		return nil, errs.ErrNotFound
	}
	return r.primary.GetDraft(ctx, id)
}

func (r *FailoverStore) GetDraftsByUser(ctx context.Context, userID string) ([]*models.BookingDraft, error) {
	return r.readDrafts(ctx, func(s domain.Store) ([]*models.BookingDraft, error) { return s.GetDraftsByUser(ctx, userID) })
}

func (r *FailoverStore) GetDraftsByStatus(ctx context.Context, status models.DraftStatus) ([]*models.BookingDraft, error) {
	return r.readDrafts(ctx, func(s domain.Store) ([]*models.BookingDraft, error) { return s.GetDraftsByStatus(ctx, status) })
}

func (r *FailoverStore) readDrafts(ctx context.Context, read func(domain.Store) ([]*models.BookingDraft, error)) ([]*models.BookingDraft, error) {
	mem, err := read(r.fallback)
	if err != nil {
		return nil, err
	}
	if !r.usePrimary() {
		return mem, nil
	}
	durable, err := read(r.primary)
	if err != nil {
		r.markDown("read_drafts", err)
		return mem, nil
	}
	seen := make(map[string]bool, len(mem))
	for _, d := range mem {
		seen[d.ID] = true
	}
	out := append([]*models.BookingDraft(nil), mem...)
	for _, d := range durable {
		if !seen[d.ID] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *FailoverStore) DeleteDraft(ctx context.Context, id string) error {
	_ = r.fallback.DeleteDraft(ctx, id)
	return r.write(ctx, "delete_draft", func(s domain.Store) error { return s.DeleteDraft(ctx, id) })
}

func (r *FailoverStore) SetPreference(ctx context.Context, key string, value json.RawMessage) error {
	if err := r.write(ctx, "set_preference", func(s domain.Store) error { return s.SetPreference(ctx, key, value) }); err != nil {
		return err
	}
	if !r.isDown.Load() {
		_ = r.fallback.DeletePreference(ctx, key)
	}
	return nil
}

func (r *FailoverStore) GetPreference(ctx context.Context, key string) (json.RawMessage, error) {
	if v, err := r.fallback.GetPreference(ctx, key); err == nil {
		return v, nil
	}
	if !r.usePrimary() {
		return nil, errs.ErrNotFound
	}
	return r.primary.GetPreference(ctx, key)
}

func (r *FailoverStore) DeletePreference(ctx context.Context, key string) error {
	_ = r.fallback.DeletePreference(ctx, key)
	return r.write(ctx, "delete_preference", func(s domain.Store) error { return s.DeletePreference(ctx, key) })
}

func (r *FailoverStore) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	if r.usePrimary() {
		ok, err := r.primary.AcquireLock(ctx, name, owner, ttl)
		if err == nil {
			return ok, nil
		}
		r.markDown("acquire_lock", err)
	}
	return r.fallback.AcquireLock(ctx, name, owner, ttl)
}

func (r *FailoverStore) ReleaseLock(ctx context.Context, name, owner string) error {
	_ = r.fallback.ReleaseLock(ctx, name, owner)
	if !r.usePrimary() {
		return nil
	}
	if err := r.primary.ReleaseLock(ctx, name, owner); err != nil {
		r.markDown("release_lock", err)
		return err
	}
	return nil
}
