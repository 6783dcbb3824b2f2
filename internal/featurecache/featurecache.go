// Package featurecache keeps image feature vectors keyed by path and validated
// against the file's size and modification time.
package featurecache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kozaktomas/library-sorter/internal/constants"
	"github.com/kozaktomas/library-sorter/internal/database"
)

var (
	// ErrComputeFailed wraps any failure of the compute function.
	ErrComputeFailed = errors.New("feature computation failed")
	// ErrCacheCorrupt is returned by stores for undecodable entries; the cache treats it as a miss.
	ErrCacheCorrupt = database.ErrCorruptEntry
)

// ComputeFunc produces the feature vector for a file.
type ComputeFunc func(ctx context.Context, path string) ([]float32, error)

// Cache fronts a database.CacheStore. Concurrent calls for the same path share
// one lookup and at most one computation.
type Cache struct {
	store database.CacheStore
	group singleflight.Group
}

// New creates a cache over store.
func New(store database.CacheStore) *Cache {
	return &Cache{store: store}
}

// Valid reports whether entry still describes a file with the given size and mtime.
func Valid(entry *database.CacheEntry, modTime time.Time, size int64) bool {
	if entry == nil || len(entry.Vector) == 0 || entry.Size != size {
		return false
	}
	diff := entry.ModTime.Sub(modTime)
	if diff < 0 {
		diff = -diff
	}
	return diff <= constants.ModTimeTolerance
}

// Lookup returns the stored vector if it is still valid. Store errors count as a miss.
func (c *Cache) Lookup(ctx context.Context, path string, modTime time.Time, size int64) ([]float32, bool) {
	entry, err := c.store.Get(ctx, path)
	if err != nil {
		if errors.Is(err, ErrCacheCorrupt) {
			log.Printf("Warning: corrupt cache entry for %s, recomputing: %v", path, err)
		} else {
			log.Printf("Warning: cache read failed for %s: %v", path, err)
		}
		return nil, false
	}
	if !Valid(entry, modTime, size) {
		return nil, false
	}
	return entry.Vector, true
}

// Store persists a vector computed outside GetOrCompute, e.g. by a batch request.
func (c *Cache) Store(ctx context.Context, path string, modTime time.Time, size int64, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector for %s", ErrComputeFailed, path)
	}
	err := c.store.Put(ctx, database.CacheEntry{
		Path:    path,
		Vector:  vec,
		ModTime: modTime.UTC(),
		Size:    size,
	})
	if err != nil {
		return fmt.Errorf("store vector for %s: %w", path, err)
	}
	return nil
}

// GetOrCompute returns the cached vector for path if valid, otherwise computes,
// persists and returns it. A failed computation writes nothing.
// The returned slice is shared and must not be modified.
func (c *Cache) GetOrCompute(ctx context.Context, path string, modTime time.Time, size int64, compute ComputeFunc) ([]float32, error) {
	v, err, _ := c.group.Do(path, func() (any, error) {
		if vec, ok := c.Lookup(ctx, path, modTime, size); ok {
			return vec, nil
		}

		vec, err := compute(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrComputeFailed, path, err)
		}
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: %s: empty vector", ErrComputeFailed, path)
		}

		if err := c.Store(ctx, path, modTime, size, vec); err != nil {
			// The vector is still usable for this run
			log.Printf("Warning: %v", err)
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Invalidate drops the entry for path.
func (c *Cache) Invalidate(ctx context.Context, path string) error {
	if err := c.store.Delete(ctx, path); err != nil {
		return fmt.Errorf("invalidate %s: %w", path, err)
	}
	return nil
}

// Clear deletes every entry and compacts the backing store.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Stats returns the number of cached entries.
func (c *Cache) Stats(ctx context.Context) (int, error) {
	count, err := c.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("cache stats: %w", err)
	}
	return count, nil
}
