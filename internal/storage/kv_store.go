package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by KVStore.Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// UpdateFunc computes the new value for a key from its current value.
// exists is false when the key is absent, in which case old is "".
// Returning an error aborts the update without writing.
type UpdateFunc func(old string, exists bool) (string, error)

// KVStore is the durable key-value store behind the device registry.
type KVStore interface {
	// Put stores value under key, replacing any previous value. The write
	// is durable once Put returns nil.
	Put(ctx context.Context, key, value string) error
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Update applies fn to the current value of key and commits the result
	// atomically with respect to other updates of the same key. It returns
	// the committed value.
	Update(ctx context.Context, key string, fn UpdateFunc) (string, error)
	// Close releases the underlying resources.
	Close() error
}

// maxUpdateAttempts bounds the compare-and-swap loop in Update.
const maxUpdateAttempts = 100

// ErrUpdateContention is returned when Update keeps losing the
// compare-and-swap race for maxUpdateAttempts rounds.
var ErrUpdateContention = errors.New("too much contention on key")
