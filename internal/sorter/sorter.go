// Package sorter composes the cache, profiles, matcher, duplicate resolver and
// reconciliation into the commands the CLI and the web API expose.
package sorter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kozaktomas/library-sorter/internal/constants"
	"github.com/kozaktomas/library-sorter/internal/dedup"
	"github.com/kozaktomas/library-sorter/internal/embedding"
	"github.com/kozaktomas/library-sorter/internal/featurecache"
	"github.com/kozaktomas/library-sorter/internal/imagemeta"
	"github.com/kozaktomas/library-sorter/internal/profile"
)

// ErrNoLibraryRoot is returned by commands that need the library root when none is configured.
var ErrNoLibraryRoot = errors.New("library root is not configured")

// ErrNamespaceNotFound is returned when a namespace has no folder under the library root.
var ErrNamespaceNotFound = errors.New("namespace folder not found")

// HealthChecker is implemented by providers that can report server readiness.
type HealthChecker interface {
	Health(ctx context.Context) (*embedding.HealthStatus, error)
}

// ProgressInfo contains progress information for callbacks
type ProgressInfo struct {
	Phase         string // "scanning", "embedding", "matching", "resolving", "applying", "rebuilding"
	Current       int
	Total         int
	Path          string
	Message       string
	Indeterminate bool
}

// ProgressFunc receives progress updates. It may be called from several goroutines.
type ProgressFunc func(ProgressInfo)

func (f ProgressFunc) report(info ProgressInfo) {
	if f != nil {
		f(info)
	}
}

// Options configures a Service.
type Options struct {
	Root                string
	Extensions          []string
	SourceFolders       []string
	SuggestionThreshold float64
	Workers             int
}

// Service runs library commands against one library root.
type Service struct {
	root      string
	scanner   *imagemeta.Scanner
	sources   imagemeta.FolderSet
	threshold float64
	workers   int

	provider  embedding.Provider
	cache     *featurecache.Cache
	store     *profile.Store
	persister profile.Persister

	mu        sync.Mutex
	proposals []dedup.ProposedAction
}

// New creates a Service.
func New(opts Options, provider embedding.Provider, cache *featurecache.Cache, store *profile.Store, persister profile.Persister) *Service {
	threshold := opts.SuggestionThreshold
	if threshold <= 0 {
		threshold = constants.DefaultSuggestionThreshold
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = constants.WorkerPoolSize
	}
	return &Service{
		root:      opts.Root,
		scanner:   imagemeta.NewScanner(opts.Extensions),
		sources:   imagemeta.NewFolderSet(opts.SourceFolders),
		threshold: threshold,
		workers:   workers,
		provider:  provider,
		cache:     cache,
		store:     store,
		persister: persister,
	}
}

// Store returns the profile store.
func (s *Service) Store() *profile.Store {
	return s.store
}

// Threshold returns the suggestion threshold.
func (s *Service) Threshold() float64 {
	return s.threshold
}

// LoadProfiles replaces the in-memory profiles with the persisted ones.
func (s *Service) LoadProfiles(ctx context.Context) (int, error) {
	return s.store.Load(ctx, s.persister)
}

// SaveProfiles persists every namespace.
func (s *Service) SaveProfiles(ctx context.Context) error {
	return s.store.SaveAll(ctx, s.persister)
}

// Proposals returns the proposals of the last categorization still awaiting approval.
func (s *Service) Proposals() []dedup.ProposedAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dedup.ProposedAction, len(s.proposals))
	copy(out, s.proposals)
	return out
}

func (s *Service) setProposals(actions []dedup.ProposedAction) {
	s.mu.Lock()
	s.proposals = append([]dedup.ProposedAction(nil), actions...)
	s.mu.Unlock()
}

// forgetProposals drops pending proposals for the given source paths.
func (s *Service) forgetProposals(sources map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.proposals[:0]
	for _, a := range s.proposals {
		if !sources[a.SourcePath] {
			kept = append(kept, a)
		}
	}
	s.proposals = kept
}

// Health queries the embedding provider.
func (s *Service) Health(ctx context.Context) (*embedding.HealthStatus, error) {
	hc, ok := s.provider.(HealthChecker)
	if !ok {
		return nil, errors.New("embedding provider does not report health")
	}
	return hc.Health(ctx)
}

// CacheStats returns the number of cached vectors.
func (s *Service) CacheStats(ctx context.Context) (int, error) {
	return s.cache.Stats(ctx)
}

// ClearCache removes every cached vector.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// vectorFor returns the vector of an image through the cache.
func (s *Service) vectorFor(ctx context.Context, entry imagemeta.Entry) ([]float32, error) {
	return s.cache.GetOrCompute(ctx, entry.Path, entry.ModTime, entry.Size, s.provider.ComputeVector)
}

// warmCache computes missing vectors in batches so that the per-file lookups
// that follow are cache hits. Failed batches are logged and left to the
// per-file path.
func (s *Service) warmCache(ctx context.Context, entries []imagemeta.Entry, progress ProgressFunc) {
	var missing []imagemeta.Entry
	for _, e := range entries {
		if _, ok := s.cache.Lookup(ctx, e.Path, e.ModTime, e.Size); !ok {
			missing = append(missing, e)
		}
	}
	if len(missing) == 0 {
		return
	}

	var chunks [][]imagemeta.Entry
	for start := 0; start < len(missing); start += constants.EmbeddingBatchSize {
		end := min(start+constants.EmbeddingBatchSize, len(missing))
		chunks = append(chunks, missing[start:end])
	}

	var (
		mu   sync.Mutex
		done int
	)
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(chunk []imagemeta.Entry) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			paths := make([]string, len(chunk))
			for i, e := range chunk {
				paths[i] = e.Path
			}
			vecs, err := s.provider.ComputeVectorsBatch(ctx, paths)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("Warning: batch embedding of %d files failed: %v", len(paths), err)
				}
			} else {
				for i, e := range chunk {
					if err := s.cache.Store(ctx, e.Path, e.ModTime, e.Size, vecs[i]); err != nil {
						log.Printf("Warning: caching %s: %v", e.Path, err)
					}
				}
			}

			mu.Lock()
			done += len(chunk)
			n := done
			mu.Unlock()
			progress.report(ProgressInfo{Phase: "embedding", Current: n, Total: len(missing)})
		}(chunk)
	}
	wg.Wait()
}

// vectorsFor extracts metadata and vectors for paths with the worker pool.
// Files that cannot be read or embedded are logged and left out; the result
// keeps input order.
func (s *Service) vectorsFor(ctx context.Context, paths []string, phase string, progress ProgressFunc) ([]dedup.Item, error) {
	entries := make([]*imagemeta.Entry, len(paths))
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := imagemeta.Extract(p)
		if err != nil {
			log.Printf("Warning: skipping %s: %v", p, err)
			continue
		}
		entries[i] = e
	}

	valid := make([]imagemeta.Entry, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			valid = append(valid, *e)
		}
	}
	s.warmCache(ctx, valid, progress)

	vecs := make([][]float32, len(entries))
	var (
		mu   sync.Mutex
		done int
	)
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for i, e := range entries {
		if e == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int, e imagemeta.Entry) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			vec, err := s.vectorFor(ctx, e)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("Warning: no vector for %s: %v", e.Path, err)
				}
			} else {
				vecs[i] = vec
			}

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			progress.report(ProgressInfo{Phase: phase, Current: n, Total: len(valid), Path: e.Path})
		}(i, *e)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items := make([]dedup.Item, 0, len(entries))
	for i, e := range entries {
		if e == nil || vecs[i] == nil {
			continue
		}
		items = append(items, dedup.Item{Meta: *e, Vector: vecs[i]})
	}
	return items, nil
}

// RebuildProfiles recomputes the named profiles from their current members
// and persists their namespaces. Members whose files are gone are dropped.
func (s *Service) RebuildProfiles(ctx context.Context, names []string) error {
	var rebuilt []string
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, ok := s.store.Get(name)
		if !ok {
			continue
		}

		var existing []string
		for _, m := range p.Members {
			if _, err := os.Stat(m); err == nil {
				existing = append(existing, m)
			}
		}
		items, err := s.vectorsFor(ctx, existing, "rebuilding", nil)
		if err != nil {
			return err
		}

		vecs := make([][]float32, len(items))
		paths := make([]string, len(items))
		for i, it := range items {
			vecs[i] = it.Vector
			paths[i] = it.Meta.Path
		}
		if _, err := s.store.UpdateProfile(p.Name, vecs, paths); err != nil {
			return fmt.Errorf("rebuild profile %s: %w", p.Name, err)
		}
		rebuilt = append(rebuilt, p.Name)
	}
	if len(rebuilt) == 0 {
		return nil
	}
	return s.store.SaveNamespacesOf(ctx, s.persister, rebuilt)
}

// RebuildProfile recomputes one profile from its current members.
func (s *Service) RebuildProfile(ctx context.Context, name string) (*profile.Profile, error) {
	name = profile.NormalizeName(name)
	if _, ok := s.store.Get(name); !ok {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	if err := s.RebuildProfiles(ctx, []string{name}); err != nil {
		return nil, err
	}
	p, _ := s.store.Get(name)
	return p, nil
}

// namespaceDir finds the folder of a namespace under the library root,
// matching case-insensitively.
func (s *Service) namespaceDir(ns string) (string, error) {
	if s.root == "" {
		return "", ErrNoLibraryRoot
	}
	dirs, err := s.modelDirs()
	if err != nil {
		return "", err
	}
	for _, d := range dirs {
		if strings.EqualFold(filepath.Base(d), ns) {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNamespaceNotFound, ns)
}

// modelDirs lists the namespace folders under the library root, sorted.
func (s *Service) modelDirs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read library root: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dirs = append(dirs, filepath.Join(s.root, e.Name()))
	}
	sort.Strings(dirs)
	return dirs, nil
}

// TargetFolder returns the folder a profile's images live in: the namespace
// folder for the default label, otherwise one nested folder per label part.
func TargetFolder(nsDir, name string) string {
	_, label := profile.ParseName(name)
	if strings.EqualFold(label, constants.DefaultLabel) {
		return nsDir
	}
	parts := []string{nsDir}
	for _, part := range strings.Split(label, constants.NameSeparator) {
		parts = append(parts, profile.SanitizeFolderName(part))
	}
	return filepath.Join(parts...)
}
