package database

import (
	"fmt"
	"sort"
	"sync"
)

// CacheOpener opens a cache store backend.
type CacheOpener func() (CacheStore, error)

// ProfileOpener opens a profile repository backend.
type ProfileOpener func() (ProfileRepository, error)

var (
	cacheBackends   = map[string]CacheOpener{}
	profileBackends = map[string]ProfileOpener{}
	registryMu      sync.RWMutex
)

// RegisterCacheBackend registers a cache store constructor under a backend name.
// This is called by cmd to avoid import cycles between backend packages.
func RegisterCacheBackend(name string, open CacheOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	cacheBackends[name] = open
}

// RegisterProfileBackend registers a profile repository constructor under a backend name.
func RegisterProfileBackend(name string, open ProfileOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	profileBackends[name] = open
}

// OpenCacheStore opens the named cache backend.
func OpenCacheStore(name string) (CacheStore, error) {
	registryMu.RLock()
	open, ok := cacheBackends[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("cache backend %q not registered (available: %v)", name, CacheBackends())
	}
	return open()
}

// OpenProfileRepository opens the named profile backend.
func OpenProfileRepository(name string) (ProfileRepository, error) {
	registryMu.RLock()
	open, ok := profileBackends[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("profile backend %q not registered", name)
	}
	return open()
}

// CacheBackends lists registered cache backend names.
func CacheBackends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(cacheBackends))
	for name := range cacheBackends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
