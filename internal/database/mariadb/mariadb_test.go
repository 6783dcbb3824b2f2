//go:build integration

package mariadb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/library-sorter/internal/database"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mariadb:11",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MARIADB_ROOT_PASSWORD": "test",
			"MARIADB_DATABASE":      "testdb",
		},
		WaitingFor: wait.ForListeningPort("3306/tcp").WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	pool, err := Initialize(fmt.Sprintf("root:test@tcp(%s:%s)/testdb", host, port.Port()))
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to initialize MariaDB: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}
	return pool, cleanup
}

func TestCacheRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewCacheRepository(pool)
	mtime := time.Date(2024, 5, 1, 12, 0, 0, 500, time.UTC)

	entry := database.CacheEntry{Path: "/lib/Anna/a.jpg", Vector: []float32{0.5, 0.25}, ModTime: mtime, Size: 42}
	if err := repo.Put(ctx, entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := repo.Get(ctx, entry.Path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || !got.ModTime.Equal(mtime) || got.Size != 42 || got.Vector[1] != 0.25 {
		t.Errorf("unexpected entry: %+v", got)
	}

	// A truncated blob reads back as corrupt
	if _, err := pool.db.ExecContext(ctx, `UPDATE feature_cache SET embedding = ? WHERE path_hash = ?`, []byte{1, 2, 3}, pathKey(entry.Path)); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}
	if _, err := repo.Get(ctx, entry.Path); !errors.Is(err, database.ErrCorruptEntry) {
		t.Errorf("expected ErrCorruptEntry, got %v", err)
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("Count() after Clear = %d, want 0", count)
	}
}
