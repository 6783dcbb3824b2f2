package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kozaktomas/library-sorter/internal/config"
	"github.com/kozaktomas/library-sorter/internal/database"
)

// BackendName is the name the PostgreSQL stores are registered under.
const BackendName = "postgres"

// Pool wraps the database handle shared by the cache and profile stores.
type Pool struct {
	db *sql.DB
}

// Open connects to PostgreSQL and brings the schema up to date.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool := &Pool{db: db}
	if err := pool.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return pool, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return p.db.QueryContext(ctx, query, args...)
}

func (p *Pool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.db.ExecContext(ctx, query, args...)
}

func (p *Pool) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return p.db.BeginTx(ctx, opts)
}

// Initialize opens the pool and registers the PostgreSQL cache store and
// profile repository. The caller closes the returned pool.
func Initialize(cfg *config.DatabaseConfig) (*Pool, error) {
	pool, err := Open(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	database.RegisterCacheBackend(BackendName, func() (database.CacheStore, error) {
		return NewCacheRepository(pool), nil
	})
	database.RegisterProfileBackend(BackendName, func() (database.ProfileRepository, error) {
		return NewProfileRepository(pool), nil
	})
	return pool, nil
}
