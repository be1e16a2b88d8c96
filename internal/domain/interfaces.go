package domain

import (
	"context"
	"encoding/json"
	"time"

	"flightbook/internal/models"
)

// QueueStore persists queue items. Put is insert-or-replace by ID and Delete
// is idempotent.
type QueueStore interface {
	Put(ctx context.Context, item *models.QueueItem) error
	Get(ctx context.Context, id string) (*models.QueueItem, error)
	GetAll(ctx context.Context) ([]*models.QueueItem, error)
	GetByIndex(ctx context.Context, field, value string) ([]*models.QueueItem, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type DraftStore interface {
	PutDraft(ctx context.Context, draft *models.BookingDraft) error
	GetDraft(ctx context.Context, id string) (*models.BookingDraft, error)
	GetDraftsByUser(ctx context.Context, userID string) ([]*models.BookingDraft, error)
	GetDraftsByStatus(ctx context.Context, status models.DraftStatus) ([]*models.BookingDraft, error)
	DeleteDraft(ctx context.Context, id string) error
}

type PreferenceStore interface {
	SetPreference(ctx context.Context, key string, value json.RawMessage) error
	GetPreference(ctx context.Context, key string) (json.RawMessage, error)
	DeletePreference(ctx context.Context, key string) error
}

// LockStore holds the advisory sync lock. AcquireLock succeeds when the lock
// is free, already held by owner, or older than ttl.
type LockStore interface {
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error
}

// Store is the full durable store handle injected into the sync components.
type Store interface {
	QueueStore
	DraftStore
	PreferenceStore
	LockStore
}

// Backend is the REST API that queued mutations are replayed against.
type Backend interface {
	CreateBooking(ctx context.Context, token string, body json.RawMessage) error
	CreatePriceAlert(ctx context.Context, token string, body json.RawMessage) error
	UpdatePriceAlert(ctx context.Context, token, id string, body json.RawMessage) error
	DeletePriceAlert(ctx context.Context, token, id string) error
	UpdatePreferences(ctx context.Context, token string, body json.RawMessage) error
	ProcessPayment(ctx context.Context, token string, body json.RawMessage) error
	Health(ctx context.Context) error
}

// Broadcaster posts a completion summary to every open client.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg models.SyncCompleteMessage) error
}

// DeadLetter receives items that exhausted their retries.
type DeadLetter interface {
	Push(ctx context.Context, item *models.QueueItem) error
}

// WakeQueue carries background replay registrations to the agent.
type WakeQueue interface {
	Request(ctx context.Context, tag models.WakeTag) error
	Next(ctx context.Context) (models.WakeTag, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
