package dedup

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/kozaktomas/library-sorter/internal/fileops"
	"github.com/kozaktomas/library-sorter/internal/profile"
)

// Invalidator drops stale cache entries after a file changed or disappeared.
type Invalidator interface {
	Invalidate(ctx context.Context, path string) error
}

// Executor carries out automatic duplicate decisions on disk and in the profile store.
type Executor struct {
	store *profile.Store
	cache Invalidator
}

// NewExecutor creates an executor. cache may be nil.
func NewExecutor(store *profile.Store, cache Invalidator) *Executor {
	return &Executor{store: store, cache: cache}
}

// Apply executes an automatic decision and returns the names of the profiles
// whose membership or member content changed. Other decision kinds are a no-op.
func (e *Executor) Apply(ctx context.Context, d Decision) ([]string, error) {
	switch d.Kind {
	case DecisionAutoReplaceExisting:
		return e.replaceExisting(ctx, d)
	case DecisionAutoDeleteSource:
		return e.deleteSource(ctx, d)
	default:
		return nil, nil
	}
}

func (e *Executor) replaceExisting(ctx context.Context, d Decision) ([]string, error) {
	if d.Duplicate == nil {
		return nil, fmt.Errorf("replace decision for %s has no duplicate", d.Source.Path)
	}
	dst := d.Duplicate.Path

	if err := fileops.Copy(d.Source.Path, dst, true); err != nil {
		return nil, fmt.Errorf("replace %s with %s: %w", dst, d.Source.Path, err)
	}
	e.invalidate(ctx, dst)
	log.Printf("Replaced %s with better duplicate %s", dst, d.Source.Path)

	affected := map[string]bool{}
	// The existing path now carries the source's content
	if d.Profile != "" && e.store.AddPath(d.Profile, dst) {
		affected[profile.NormalizeName(d.Profile)] = true
	}

	if err := fileops.Delete(d.Source.Path); err != nil {
		return sortedKeys(affected), fmt.Errorf("delete source after replace: %w", err)
	}
	e.invalidate(ctx, d.Source.Path)
	for _, name := range e.store.RemovePath(d.Source.Path) {
		affected[name] = true
	}
	return sortedKeys(affected), nil
}

func (e *Executor) deleteSource(ctx context.Context, d Decision) ([]string, error) {
	if err := fileops.Delete(d.Source.Path); err != nil {
		return nil, fmt.Errorf("delete duplicate source: %w", err)
	}
	if d.Duplicate != nil {
		log.Printf("Deleted %s, duplicate of %s", d.Source.Path, d.Duplicate.Path)
	}
	e.invalidate(ctx, d.Source.Path)
	return e.store.RemovePath(d.Source.Path), nil
}

func (e *Executor) invalidate(ctx context.Context, path string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, path); err != nil {
		log.Printf("Warning: %v", err)
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
