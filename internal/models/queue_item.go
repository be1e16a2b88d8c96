package models

import (
	"encoding/json"
	"time"
)

// ItemType selects the replay strategy of a queued mutation.
type ItemType string

const (
	TypeBooking    ItemType = "booking"
	TypePriceAlert ItemType = "price-alert"
	TypePreference ItemType = "preference"
	TypePayment    ItemType = "payment"
)

// Valid reports whether t is one of the known item types.
func (t ItemType) Valid() bool {
	switch t {
	case TypeBooking, TypePriceAlert, TypePreference, TypePayment:
		return true
	}
	return false
}

// Action is only meaningful for price alerts and preferences.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Status is the lifecycle state of a QueueItem.
//
//	pending -> processing -> completed | pending | failed
//	failed -> pending (RetryFailed only)
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// QueueItem is one durable record for a single pending mutation.
type QueueItem struct {
	ID         string          `json:"id"`
	Type       ItemType        `json:"type"`
	Action     Action          `json:"action"`
	Data       json.RawMessage `json:"data"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retryCount"`
	Status     Status          `json:"status"`
	LastError  string          `json:"lastError,omitempty"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	ExpiresAt  *time.Time      `json:"expiresAt,omitempty"`
}

// Clone returns a deep copy so stores never share Data slices with callers.
func (q *QueueItem) Clone() *QueueItem {
	if q == nil {
		return nil
	}
	c := *q
	if q.Data != nil {
		c.Data = append(json.RawMessage(nil), q.Data...)
	}
	if q.ExpiresAt != nil {
		t := *q.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}
