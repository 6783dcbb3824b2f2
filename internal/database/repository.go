package database

import (
	"context"
	"errors"
)

// ErrCorruptEntry is returned when a stored cache entry cannot be decoded.
// Callers treat it as a cache miss.
var ErrCorruptEntry = errors.New("corrupt cache entry")

// CacheStore is the durable, path-keyed feature vector store
type CacheStore interface {
	// Get retrieves the entry for a path, returns nil if not found
	Get(ctx context.Context, path string) (*CacheEntry, error)
	// Put inserts or replaces the entry for entry.Path atomically
	Put(ctx context.Context, entry CacheEntry) error
	// Delete removes the entry for a path, if any
	Delete(ctx context.Context, path string) error
	// Clear removes every entry and reclaims storage
	Clear(ctx context.Context) error
	// Count returns the number of stored entries
	Count(ctx context.Context) (int, error)
	// Close releases the underlying connection
	Close() error
}

// ProfileRepository persists profiles grouped by namespace
type ProfileRepository interface {
	// LoadAll returns every stored profile. Unreadable profiles are skipped
	// and reported in the returned warnings instead of failing the load.
	LoadAll(ctx context.Context) ([]StoredProfile, []error, error)
	// SaveNamespace replaces all stored profiles of a namespace
	SaveNamespace(ctx context.Context, namespace string, profiles []StoredProfile) error
	// DeleteNamespace removes all stored profiles of a namespace
	DeleteNamespace(ctx context.Context, namespace string) error
}
