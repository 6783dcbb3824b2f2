// Package sqlite implements the feature cache on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kozaktomas/library-sorter/internal/database"
)

// BackendName is the name the SQLite cache store is registered under.
const BackendName = "sqlite"

//go:embed schema.sql
var schema string

// Store is a SQLite-backed database.CacheStore.
// Reads run concurrently under WAL; writes are serialized.
type Store struct {
	db      *sql.DB
	path    string
	writeMu sync.Mutex
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Register makes the SQLite backend available under BackendName.
func Register(path string) {
	database.RegisterCacheBackend(BackendName, func() (database.CacheStore, error) {
		return Open(path)
	})
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Get retrieves a cache entry by path, returns nil if not found
func (s *Store) Get(ctx context.Context, path string) (*database.CacheEntry, error) {
	var blob []byte
	var mtimeNs, size int64
	err := s.db.QueryRowContext(ctx,
		"SELECT embedding, mtime_ns, size FROM feature_cache WHERE path = ?",
		path,
	).Scan(&blob, &mtimeNs, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
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
func (s *Store) Put(ctx context.Context, entry database.CacheEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO feature_cache (path, embedding, mtime_ns, size) VALUES (?, ?, ?, ?)",
		entry.Path, database.EncodeVector(entry.Vector), entry.ModTime.UnixNano(), entry.Size,
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// Delete removes the entry for a path
func (s *Store) Delete(ctx context.Context, path string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM feature_cache WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// Clear deletes every entry and compacts the file
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM feature_cache"); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// Count returns the number of cached entries
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feature_cache").Scan(&count); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}
