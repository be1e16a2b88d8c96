package syncer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"flightbook/internal/models"
	"flightbook/internal/repository"

	"github.com/stretchr/testify/require"
)

type backendCall struct {
	Op   string
	ID   string
	Body json.RawMessage
}

// fakeBackend records calls and fails those selected by failOn.
type fakeBackend struct {
	mu     sync.Mutex
	calls  []backendCall
	tokens []string
	failOn func(call backendCall) error
}

func (b *fakeBackend) record(token string, c backendCall) error {
	b.mu.Lock()
	b.calls = append(b.calls, c)
	b.tokens = append(b.tokens, token)
	fail := b.failOn
	b.mu.Unlock()
	if fail != nil {
		return fail(c)
	}
	return nil
}

func (b *fakeBackend) Calls() []backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]backendCall(nil), b.calls...)
}

func (b *fakeBackend) CreateBooking(_ context.Context, token string, body json.RawMessage) error {
	return b.record(token, backendCall{Op: "CreateBooking", Body: body})
}

func (b *fakeBackend) CreatePriceAlert(_ context.Context, token string, body json.RawMessage) error {
	return b.record(token, backendCall{Op: "CreatePriceAlert", Body: body})
}

func (b *fakeBackend) UpdatePriceAlert(_ context.Context, token, id string, body json.RawMessage) error {
	return b.record(token, backendCall{Op: "UpdatePriceAlert", ID: id, Body: body})
}

func (b *fakeBackend) DeletePriceAlert(_ context.Context, token, id string) error {
	return b.record(token, backendCall{Op: "DeletePriceAlert", ID: id})
}

func (b *fakeBackend) UpdatePreferences(_ context.Context, token string, body json.RawMessage) error {
	return b.record(token, backendCall{Op: "UpdatePreferences", Body: body})
}

func (b *fakeBackend) ProcessPayment(_ context.Context, token string, body json.RawMessage) error {
	return b.record(token, backendCall{Op: "ProcessPayment", Body: body})
}

func (b *fakeBackend) Health(context.Context) error { return nil }

type fakeDeadLetter struct {
	items []*models.QueueItem
}

func (d *fakeDeadLetter) Push(_ context.Context, item *models.QueueItem) error {
	d.items = append(d.items, item)
	return nil
}

type publishedEvent struct {
	Type    string
	Payload interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) PublishJSON(eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: eventType, Payload: payload})
	return nil
}

func login(t *testing.T, store *repository.MemoryStore, token string) {
	t.Helper()
	raw, err := json.Marshal(token)
	require.NoError(t, err)
	require.NoError(t, store.SetPreference(context.Background(), models.PrefAuthToken, raw))
}

func enqueue(t *testing.T, store *repository.MemoryStore, id string, typ models.ItemType, action models.Action, data string) *models.QueueItem {
	t.Helper()
	now := time.Now().UTC()
	item := &models.QueueItem{
		ID:        id,
		Type:      typ,
		Action:    action,
		Data:      json.RawMessage(data),
		Timestamp: now,
		Status:    models.StatusPending,
		UpdatedAt: now,
	}
	require.NoError(t, store.Put(context.Background(), item))
	return item
}

func stored(t *testing.T, store *repository.MemoryStore, id string) *models.QueueItem {
	t.Helper()
	it, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	return it
}

func newPrefStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	return repository.NewMemoryStore()
}
