package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/library-sorter/internal/database"
)

// CacheRepository provides PostgreSQL-backed feature vector storage
type CacheRepository struct {
	pool *Pool
}

// NewCacheRepository creates a new PostgreSQL cache repository
func NewCacheRepository(pool *Pool) *CacheRepository {
	return &CacheRepository{pool: pool}
}

// Get retrieves a cache entry by path, returns nil if not found
func (r *CacheRepository) Get(ctx context.Context, path string) (*database.CacheEntry, error) {
	query := `
		SELECT path, embedding, mtime, size
		FROM feature_cache
		WHERE path = $1
	`

	var entry database.CacheEntry
	var vec pgvector.Vector

	err := r.pool.QueryRow(ctx, query, path).Scan(
		&entry.Path,
		&vec,
		&entry.ModTime,
		&entry.Size,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cache entry: %w", err)
	}

	entry.Vector = vec.Slice()
	if len(entry.Vector) == 0 {
		return nil, fmt.Errorf("%w: %s has an empty vector", database.ErrCorruptEntry, path)
	}
	entry.ModTime = entry.ModTime.UTC()
	return &entry, nil
}

// Put inserts or replaces the entry for a path
func (r *CacheRepository) Put(ctx context.Context, entry database.CacheEntry) error {
	if len(entry.Vector) == 0 {
		return errors.New("refusing to cache an empty vector")
	}

	query := `
		INSERT INTO feature_cache (path, embedding, mtime, size, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (path) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			mtime = EXCLUDED.mtime,
			size = EXCLUDED.size,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, entry.Path, pgvector.NewVector(entry.Vector), entry.ModTime.UTC(), entry.Size)
	if err != nil {
		return fmt.Errorf("save cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry for a path
func (r *CacheRepository) Delete(ctx context.Context, path string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM feature_cache WHERE path = $1", path); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Clear removes all entries and vacuums the table
func (r *CacheRepository) Clear(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM feature_cache"); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	if _, err := r.pool.Exec(ctx, "VACUUM feature_cache"); err != nil {
		return fmt.Errorf("vacuum cache: %w", err)
	}
	return nil
}

// Count returns the number of cached entries
func (r *CacheRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM feature_cache").Scan(&count); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return count, nil
}

// Close is a no-op; the pool is shared and closed by its owner
func (r *CacheRepository) Close() error {
	return nil
}
