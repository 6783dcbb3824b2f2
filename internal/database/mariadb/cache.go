package mariadb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/library-sorter/internal/database"
)

// CacheRepository stores feature vectors in MariaDB.
// Paths can exceed the InnoDB key length, so rows are keyed by the SHA-256 of the path.
type CacheRepository struct {
	pool *Pool
}

// NewCacheRepository creates a new MariaDB cache repository
func NewCacheRepository(pool *Pool) *CacheRepository {
	return &CacheRepository{pool: pool}
}

func pathKey(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}

// Get retrieves a cache entry by path, returns nil if not found
func (r *CacheRepository) Get(ctx context.Context, path string) (*database.CacheEntry, error) {
	var blob []byte
	var mtimeNs, size int64
	err := r.pool.db.QueryRowContext(ctx,
		`SELECT embedding, mtime_ns, size FROM feature_cache WHERE path_hash = ?`,
		pathKey(path),
	).Scan(&blob, &mtimeNs, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cache entry: %w", err)
	}

	vec, err := database.DecodeVector(blob)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return &database.CacheEntry{
		Path:    path,
		Vector:  vec,
		ModTime: time.Unix(0, mtimeNs).UTC(),
		Size:    size,
	}, nil
}

// Put inserts or replaces the entry for a path
func (r *CacheRepository) Put(ctx context.Context, entry database.CacheEntry) error {
	query := `
		INSERT INTO feature_cache (path_hash, path, embedding, mtime_ns, size)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			path = VALUES(path),
			embedding = VALUES(embedding),
			mtime_ns = VALUES(mtime_ns),
			size = VALUES(size)
	`
	_, err := r.pool.db.ExecContext(ctx, query,
		pathKey(entry.Path), entry.Path, database.EncodeVector(entry.Vector), entry.ModTime.UnixNano(), entry.Size,
	)
	if err != nil {
		return fmt.Errorf("save cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry for a path
func (r *CacheRepository) Delete(ctx context.Context, path string) error {
	if _, err := r.pool.db.ExecContext(ctx, `DELETE FROM feature_cache WHERE path_hash = ?`, pathKey(path)); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Clear removes all entries and rebuilds the table to reclaim space
func (r *CacheRepository) Clear(ctx context.Context) error {
	if _, err := r.pool.db.ExecContext(ctx, `DELETE FROM feature_cache`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	rows, err := r.pool.db.QueryContext(ctx, `OPTIMIZE TABLE feature_cache`)
	if err != nil {
		return fmt.Errorf("optimize cache table: %w", err)
	}
	return rows.Close()
}

// Count returns the number of cached entries
func (r *CacheRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feature_cache`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return count, nil
}

// Close is a no-op; the pool is closed by its owner
func (r *CacheRepository) Close() error {
	return nil
}
