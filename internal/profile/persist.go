package profile

import (
	"context"
	"fmt"
	"log"

	"github.com/kozaktomas/library-sorter/internal/database"
)

// Persister stores profiles grouped by namespace. The JSON directory backend
// and the PostgreSQL repository both implement it.
type Persister = database.ProfileRepository

// Load replaces the store contents with the persisted profiles. Corrupt
// profiles are logged and skipped; the number loaded is returned.
func (s *Store) Load(ctx context.Context, p Persister) (int, error) {
	stored, warnings, err := p.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load profiles: %w", err)
	}
	for _, w := range warnings {
		log.Printf("Warning: %v", w)
	}

	s.mu.Lock()
	s.profiles = make(map[string]*Profile, len(stored))
	s.mu.Unlock()

	loaded := 0
	for _, sp := range stored {
		prof, err := FromStored(sp)
		if err != nil {
			log.Printf("Warning: skipping profile: %v", err)
			continue
		}
		s.Put(prof)
		loaded++
	}
	return loaded, nil
}

// SaveNamespace persists every profile of a namespace. An empty namespace is
// deleted from the backend.
func (s *Store) SaveNamespace(ctx context.Context, p Persister, ns string) error {
	profiles := s.Namespace(ns)
	if len(profiles) == 0 {
		if err := p.DeleteNamespace(ctx, ns); err != nil {
			return fmt.Errorf("delete namespace %s: %w", ns, err)
		}
		return nil
	}

	stored := make([]database.StoredProfile, 0, len(profiles))
	for _, prof := range profiles {
		stored = append(stored, ToStored(prof))
	}
	// Use the stored spelling so case variants map to one file or row set
	if err := p.SaveNamespace(ctx, profiles[0].Namespace(), stored); err != nil {
		return fmt.Errorf("save namespace %s: %w", ns, err)
	}
	return nil
}

// SaveNamespacesOf persists the namespaces of the given profile names once each.
func (s *Store) SaveNamespacesOf(ctx context.Context, p Persister, names []string) error {
	seen := make(map[string]bool)
	for _, name := range names {
		ns := NamespaceOf(name)
		key := normalizeKey(ns)
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := s.SaveNamespace(ctx, p, ns); err != nil {
			return err
		}
	}
	return nil
}

// SaveAll persists every namespace.
func (s *Store) SaveAll(ctx context.Context, p Persister) error {
	for _, ns := range s.Namespaces() {
		if err := s.SaveNamespace(ctx, p, ns); err != nil {
			return err
		}
	}
	return nil
}
