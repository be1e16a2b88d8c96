package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"flightbook/internal/errs"
	"flightbook/internal/models"
)

// MemoryStore is an in-process implementation of domain.Store. It keeps
// insertion order like the durable store and loses everything on restart.
type MemoryStore struct {
	mu sync.RWMutex

	items     map[string]*models.QueueItem
	itemOrder []string

	drafts     map[string]*models.BookingDraft
	draftOrder []string

	prefs map[string]json.RawMessage
	locks map[string]memoryLock
}

type memoryLock struct {
	owner      string
	acquiredAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:  make(map[string]*models.QueueItem),
		drafts: make(map[string]*models.BookingDraft),
		prefs:  make(map[string]json.RawMessage),
		locks:  make(map[string]memoryLock),
	}
}

func (s *MemoryStore) Put(ctx context.Context, item *models.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		s.itemOrder = append(s.itemOrder, item.ID)
	}
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("queue item %s: %w", id, errs.ErrNotFound)
	}
	return item.Clone(), nil
}

func (s *MemoryStore) GetAll(ctx context.Context) ([]*models.QueueItem, error) {
	return s.filter(func(*models.QueueItem) bool { return true }), nil
}

func (s *MemoryStore) GetByIndex(ctx context.Context, field, value string) ([]*models.QueueItem, error) {
	switch field {
	case "status":
		return s.filter(func(it *models.QueueItem) bool { return string(it.Status) == value }), nil
	case "type":
		return s.filter(func(it *models.QueueItem) bool { return string(it.Type) == value }), nil
	default:
		return nil, fmt.Errorf("index %q: %w", field, errs.ErrUnsupportedIndex)
	}
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(id)
	return nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	for _, id := range s.itemOrder {
		it := s.items[id]
		if it.Status == models.StatusCompleted && it.ExpiresAt != nil && !it.ExpiresAt.After(now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		s.deleteLocked(id)
	}
	return len(expired), nil
}

func (s *MemoryStore) deleteLocked(id string) {
	if _, ok := s.items[id]; !ok {
		return
	}
	delete(s.items, id)
	for i, v := range s.itemOrder {
		if v == id {
			s.itemOrder = append(s.itemOrder[:i], s.itemOrder[i+1:]...)
			break
		}
	}
}

func (s *MemoryStore) filter(keep func(*models.QueueItem) bool) []*models.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.QueueItem, 0, len(s.itemOrder))
	for _, id := range s.itemOrder {
		if it := s.items[id]; keep(it) {
			out = append(out, it.Clone())
		}
	}
	return out
}

func (s *MemoryStore) PutDraft(ctx context.Context, draft *models.BookingDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[draft.ID]; !ok {
		s.draftOrder = append(s.draftOrder, draft.ID)
	}
	d := *draft
	d.Data = append(json.RawMessage(nil), draft.Data...)
	s.drafts[draft.ID] = &d
	return nil
}

func (s *MemoryStore) GetDraft(ctx context.Context, id string) (*models.BookingDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	if !ok {
		return nil, fmt.Errorf("booking draft %s: %w", id, errs.ErrNotFound)
	}
	c := *d
	return &c, nil
}

func (s *MemoryStore) GetDraftsByUser(ctx context.Context, userID string) ([]*models.BookingDraft, error) {
	return s.filterDrafts(func(d *models.BookingDraft) bool { return d.UserID == userID }), nil
}

func (s *MemoryStore) GetDraftsByStatus(ctx context.Context, status models.DraftStatus) ([]*models.BookingDraft, error) {
	return s.filterDrafts(func(d *models.BookingDraft) bool { return d.Status == status }), nil
}

func (s *MemoryStore) DeleteDraft(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[id]; !ok {
		return nil
	}
	delete(s.drafts, id)
	for i, v := range s.draftOrder {
		if v == id {
			s.draftOrder = append(s.draftOrder[:i], s.draftOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) filterDrafts(keep func(*models.BookingDraft) bool) []*models.BookingDraft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.BookingDraft, 0)
	for _, id := range s.draftOrder {
		if d := s.drafts[id]; keep(d) {
			c := *d
			out = append(out, &c)
		}
	}
	return out
}

// Drafts returns a copy of every draft in insertion order.
func (s *MemoryStore) Drafts() []*models.BookingDraft {
	return s.filterDrafts(func(*models.BookingDraft) bool { return true })
}

// Preferences returns a copy of every preference.
func (s *MemoryStore) Preferences() map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(s.prefs))
	for k, v := range s.prefs {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func (s *MemoryStore) SetPreference(ctx context.Context, key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[key] = append(json.RawMessage(nil), value...)
	return nil
}

func (s *MemoryStore) GetPreference(ctx context.Context, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.prefs[key]
	if !ok {
		return nil, fmt.Errorf("preference %s: %w", key, errs.ErrNotFound)
	}
	return append(json.RawMessage(nil), v...), nil
}

func (s *MemoryStore) DeletePreference(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prefs, key)
	return nil
}

func (s *MemoryStore) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	cur, held := s.locks[name]
	if held && cur.owner != owner && now.Sub(cur.acquiredAt) < ttl {
		return false, nil
	}
	s.locks[name] = memoryLock{owner: owner, acquiredAt: now}
	return true, nil
}

func (s *MemoryStore) ReleaseLock(ctx context.Context, name, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.locks[name]; ok && cur.owner == owner {
		delete(s.locks, name)
	}
	return nil
}
