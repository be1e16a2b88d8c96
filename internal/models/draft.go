package models

import (
	"encoding/json"
	"time"
)

type DraftStatus string

const (
	DraftStatusDraft   DraftStatus = "draft"
	DraftStatusPending DraftStatus = "pending"
	DraftStatusSynced  DraftStatus = "synced"
)

// BookingDraft is a local display copy of a queued booking. It is linked to
// its QueueItem only by UserID + FlightID.
type BookingDraft struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	FlightID  string          `json:"flightId"`
	Data      json.RawMessage `json:"data"`
	Status    DraftStatus     `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// BookingRef is the part of a booking payload used to match drafts.
type BookingRef struct {
	UserID   string `json:"userId"`
	FlightID string `json:"flightId"`
}
