package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kozaktomas/library-sorter/internal/config"
	"github.com/kozaktomas/library-sorter/internal/constants"
	"github.com/kozaktomas/library-sorter/internal/database"
	"github.com/kozaktomas/library-sorter/internal/database/mariadb"
	"github.com/kozaktomas/library-sorter/internal/database/postgres"
	"github.com/kozaktomas/library-sorter/internal/database/sqlite"
	"github.com/kozaktomas/library-sorter/internal/embedding"
	"github.com/kozaktomas/library-sorter/internal/featurecache"
	"github.com/kozaktomas/library-sorter/internal/profile"
	"github.com/kozaktomas/library-sorter/internal/sorter"
	"github.com/kozaktomas/library-sorter/internal/supervisor"
)

// app bundles the service and its supervisor for one command invocation.
type app struct {
	cfg      *config.Config
	svc      *sorter.Service
	sup      *supervisor.Supervisor
	progress *progressReporter
	closers  []func() error
}

// registerBackends makes the configured storage backends available by name.
func registerBackends(cfg *config.Config) ([]func() error, error) {
	var closers []func() error

	sqlite.Register(cfg.Cache.Path)
	profile.RegisterJSONDir(cfg.Profiles.Dir)

	if cfg.Cache.Backend == postgres.BackendName || cfg.Profiles.Backend == postgres.BackendName {
		if cfg.Database.URL == "" {
			return nil, errors.New("DATABASE_URL environment variable is required for the postgres backend")
		}
		fmt.Printf("Connecting to PostgreSQL database...\n")
		pool, err := postgres.Initialize(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		closers = append(closers, pool.Close)
	}

	if cfg.Cache.Backend == mariadb.BackendName {
		if cfg.MariaDB.DSN == "" {
			return nil, errors.New("MARIADB_DSN environment variable is required for the mariadb backend")
		}
		fmt.Printf("Connecting to MariaDB database...\n")
		pool, err := mariadb.Initialize(cfg.MariaDB.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		closers = append(closers, pool.Close)
	}

	return closers, nil
}

// newApp loads configuration, opens the backends and loads the profiles.
// quiet disables the progress bar.
func newApp(ctx context.Context, quiet bool) (*app, error) {
	cfg := config.Load()

	closers, err := registerBackends(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, closers: closers}

	cacheStore, err := database.OpenCacheStore(cfg.Cache.Backend)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening feature cache: %w", err)
	}
	a.closers = append([]func() error{cacheStore.Close}, a.closers...)

	repo, err := database.OpenProfileRepository(cfg.Profiles.Backend)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening profile store: %w", err)
	}

	client := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Concurrency, cfg.Embedding.Timeout)
	client.SetUpload(cfg.Embedding.Upload)
	a.svc = sorter.New(sorter.Options{
		Root:                cfg.Library.Root,
		Extensions:          cfg.Library.Extensions,
		SourceFolders:       cfg.Library.SourceFolders,
		SuggestionThreshold: cfg.Library.SuggestionThreshold,
	}, client, featurecache.New(cacheStore), profile.NewStore(), repo)

	n, err := a.svc.LoadProfiles(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	if !quiet {
		fmt.Printf("Loaded %d profiles\n", n)
	}

	a.progress = &progressReporter{quiet: quiet}
	opts := []supervisor.Option{supervisor.WithObserver(a.progress.observe)}
	if cfg.Library.Root != "" {
		opts = append(opts, supervisor.WithLibraryLock(filepath.Join(cfg.Library.Root, constants.LibraryLockName), constants.LockTimeout))
	}
	a.sup = supervisor.New(opts...)

	return a, nil
}

// Close releases the backends.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			fmt.Printf("Warning: closing backend: %v\n", err)
		}
	}
}

// run executes fn as a supervised operation and maps its outcome to an error.
// The value is returned even when the operation was cancelled or failed.
func (a *app) run(ctx context.Context, name string, fn supervisor.Func) (any, error) {
	res := a.sup.Run(ctx, name, fn)
	a.progress.finish()

	switch res.Outcome {
	case supervisor.Succeeded:
		return res.Value, nil
	case supervisor.Cancelled:
		return res.Value, errors.New("operation cancelled")
	default:
		return res.Value, fmt.Errorf("%s failed: %s", name, res.Error)
	}
}

// signalContext returns a context cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
