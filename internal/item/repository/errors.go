package repository

import "errors"

var (
	// ErrNotFound is returned when an item does not exist or is tombstoned.
	ErrNotFound = errors.New("casher: item not found")

	// ErrDuplicateKey is returned when an insert collides with an
	// existing key.
	ErrDuplicateKey = errors.New("casher: duplicate key")

	// ErrRevisionConflict is returned when an update's expected revision
	// is stale: the item exists but was modified concurrently.
	ErrRevisionConflict = errors.New("casher: revision conflict")

	// ErrStoreUnavailable is returned on connection or timeout failure
	// talking to the store.
	ErrStoreUnavailable = errors.New("casher: store unavailable")

	// ErrStoreInternal is returned for any other store-reported fault.
	ErrStoreInternal = errors.New("casher: store internal error")
)
