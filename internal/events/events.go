package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"flightbook/internal/domain"
	"flightbook/internal/models"
)

const (
	EventSyncComplete   = models.MessageSyncComplete
	EventQueueItemAdded = "QUEUE_ITEM_ADDED"
)

// QueueItemAddedPayload describes a freshly enqueued item for UI consumers.
type QueueItemAddedPayload struct {
	ItemID string          `json:"itemId"`
	Type   models.ItemType `json:"type"`
	Action models.Action   `json:"action,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

type subscription struct {
	id      uint64
	handler EventHandler
}

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]subscription
	nextID      uint64
	mu          sync.RWMutex
}

var (
	_ domain.EventPublisher = (*EventBus)(nil)
	_ domain.Broadcaster    = (*EventBus)(nil)
)

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]subscription)}
}

// Subscribe registers a handler for a given event type and returns a function
// that removes it.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{id: id, handler: handler})
	return func() { b.unsubscribe(eventType, id) }
}

func (b *EventBus) unsubscribe(eventType string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[eventType]
	for i, s := range subs {
		if s.id == id {
			b.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Listen delivers events of the given types on a buffered channel. Events are
// dropped for a listener whose buffer is full. The returned func stops delivery.
func (b *EventBus) Listen(buffer int, eventTypes ...string) (<-chan *Event, func()) {
	ch := make(chan *Event, buffer)
	var (
		mu     sync.Mutex
		closed bool
	)
	forward := func(ev *Event) error {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return nil
		}
		select {
		case ch <- ev:
		default:
		}
		return nil
	}

	cancels := make([]func(), 0, len(eventTypes))
	for _, t := range eventTypes {
		cancels = append(cancels, b.Subscribe(t, forward))
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			for _, c := range cancels {
				c()
			}
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, s := range subs {
		// Handlers run synchronously; caller decides concurrency model.
		_ = s.handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// Broadcast publishes a completion summary to local listeners.
func (b *EventBus) Broadcast(_ context.Context, msg models.SyncCompleteMessage) error {
	return b.PublishJSON(EventSyncComplete, msg)
}
