// Package errs contains sentinel errors shared by the store, executor and API layers.
package errs

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthenticated means no usable bearer token is cached for replay.
	ErrNotAuthenticated = errors.New("Not authenticated")

	// ErrUnknownItemType marks a queue item whose type has no replay strategy.
	ErrUnknownItemType = errors.New("unknown item type")

	// ErrInvalidPayload marks a queue item whose data cannot be decoded for its type.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrSyncInProgress is returned when another pass holds the sync lock.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrStorageUnavailable indicates the durable store cannot serve the request.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrValidation marks caller input that cannot be enqueued.
	ErrValidation = errors.New("validation failed")

	// ErrUnsupportedIndex is returned by GetByIndex for fields other than status and type.
	ErrUnsupportedIndex = errors.New("unsupported index")
)
