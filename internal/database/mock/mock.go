// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/kozaktomas/library-sorter/internal/database"
)

// MockCacheStore is a mock implementation of database.CacheStore
type MockCacheStore struct {
	mu      sync.RWMutex
	entries map[string]database.CacheEntry

	// Call counters
	Gets   int
	Puts   int
	Clears int

	// Error injection
	GetError    error
	PutError    error
	DeleteError error
	ClearError  error
	CountError  error
}

// NewMockCacheStore creates a new mock cache store
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{
		entries: make(map[string]database.CacheEntry),
	}
}

// Get retrieves an entry by path
func (m *MockCacheStore) Get(ctx context.Context, path string) (*database.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	if m.GetError != nil {
		return nil, m.GetError
	}
	e, ok := m.entries[path]
	if !ok {
		return nil, nil
	}
	e.Vector = append([]float32(nil), e.Vector...)
	return &e, nil
}

// Put stores an entry
func (m *MockCacheStore) Put(ctx context.Context, entry database.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Puts++
	if m.PutError != nil {
		return m.PutError
	}
	entry.Vector = append([]float32(nil), entry.Vector...)
	m.entries[entry.Path] = entry
	return nil
}

// Delete removes an entry
func (m *MockCacheStore) Delete(ctx context.Context, path string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, path)
	return nil
}

// Clear removes all entries
func (m *MockCacheStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Clears++
	if m.ClearError != nil {
		return m.ClearError
	}
	m.entries = make(map[string]database.CacheEntry)
	return nil
}

// Count returns the number of entries
func (m *MockCacheStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Close does nothing
func (m *MockCacheStore) Close() error {
	return nil
}

// PutCalls returns the number of Put calls so far
func (m *MockCacheStore) PutCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Puts
}

// MockProfileRepository is a mock implementation of database.ProfileRepository
type MockProfileRepository struct {
	mu         sync.RWMutex
	namespaces map[string][]database.StoredProfile

	// Warnings returned by LoadAll
	Warnings []error

	// Error injection
	LoadError   error
	SaveError   error
	DeleteError error
}

// NewMockProfileRepository creates a new mock profile repository
func NewMockProfileRepository() *MockProfileRepository {
	return &MockProfileRepository{
		namespaces: make(map[string][]database.StoredProfile),
	}
}

// LoadAll returns all profiles ordered by namespace
func (m *MockProfileRepository) LoadAll(ctx context.Context) ([]database.StoredProfile, []error, error) {
	if m.LoadError != nil {
		return nil, nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.namespaces))
	for ns := range m.namespaces {
		names = append(names, ns)
	}
	sort.Strings(names)

	var result []database.StoredProfile
	for _, ns := range names {
		result = append(result, m.namespaces[ns]...)
	}
	return result, m.Warnings, nil
}

// SaveNamespace replaces the profiles of a namespace
func (m *MockProfileRepository) SaveNamespace(ctx context.Context, namespace string, profiles []database.StoredProfile) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(profiles) == 0 {
		delete(m.namespaces, namespace)
		return nil
	}
	m.namespaces[namespace] = append([]database.StoredProfile(nil), profiles...)
	return nil
}

// DeleteNamespace removes the profiles of a namespace
func (m *MockProfileRepository) DeleteNamespace(ctx context.Context, namespace string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.namespaces, namespace)
	return nil
}

// Namespace returns the stored profiles of one namespace
func (m *MockProfileRepository) Namespace(namespace string) []database.StoredProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.StoredProfile(nil), m.namespaces[namespace]...)
}
