package models

import "time"

const (
	// PrefAuthToken is the preferences key holding the bearer token used for replay.
	PrefAuthToken = "authToken"

	// MessageSyncComplete is the message type broadcast after a background pass.
	MessageSyncComplete = "SYNC_COMPLETE"
)

// WakeTag names a background replay trigger.
type WakeTag string

const (
	// TagSyncBookings wakes the agent for pending bookings only.
	TagSyncBookings WakeTag = "sync-bookings"
	// TagSyncAll wakes the agent for every pending item.
	TagSyncAll WakeTag = "sync-all"
)

func (t WakeTag) Valid() bool {
	return t == TagSyncBookings || t == TagSyncAll
}

const (
	DefaultMaxRetries      = 3
	DefaultRetentionWindow = 24 * time.Hour
	DefaultItemDelay       = 200 * time.Millisecond
	DefaultSyncInterval    = 5 * time.Minute
	DefaultLockTTL         = 2 * time.Minute
	DefaultPurgeInterval   = time.Hour

	// SyncLockName is the advisory lock record shared by every sync pass.
	SyncLockName = "syncInProgress"
)
