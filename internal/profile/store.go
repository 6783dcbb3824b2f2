package profile

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store is the single owner of all profiles. A path is a member of at most
// one profile; UpdateProfile and AddPath move it out of any other profile.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	now      func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		profiles: make(map[string]*Profile),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// UpdateProfile recomputes the named profile from the given vectors and paths
// (index-aligned) and stores it. The returned profile is a copy.
func (s *Store) UpdateProfile(name string, vectors [][]float32, paths []string) (*Profile, error) {
	if name == "" {
		return nil, fmt.Errorf("profile name is required")
	}
	if len(vectors) != len(paths) {
		return nil, fmt.Errorf("update profile %s: %d vectors for %d paths", name, len(vectors), len(paths))
	}
	name = NormalizeName(name)

	centroid, members := ComputeCentroid(vectors, paths)

	s.mu.Lock()
	defer s.mu.Unlock()

	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}
	for otherName, other := range s.profiles {
		if otherName == name {
			continue
		}
		other.Members = filterOut(other.Members, memberSet)
	}

	p := &Profile{
		Name:         name,
		Centroid:     centroid,
		Members:      members,
		LastComputed: s.now(),
	}
	s.profiles[name] = p
	return p.clone(), nil
}

// Put inserts a loaded profile as-is, releasing its members from other profiles.
func (s *Store) Put(p *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := p.clone()
	c.Name = NormalizeName(c.Name)
	memberSet := make(map[string]bool, len(c.Members))
	for _, m := range c.Members {
		memberSet[m] = true
	}
	for otherName, other := range s.profiles {
		if otherName != c.Name {
			other.Members = filterOut(other.Members, memberSet)
		}
	}
	s.profiles[c.Name] = c
}

// Get returns a copy of the named profile
func (s *Store) Get(name string) (*Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[NormalizeName(name)]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

// All returns copies of every profile sorted by name
func (s *Store) All() []*Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(func(*Profile) bool { return true })
}

// Snapshot returns a deep copy of every profile, sorted by name
func (s *Store) Snapshot() []*Profile {
	return s.All()
}

// Namespace returns copies of the profiles in a namespace (case-insensitive), sorted by name
func (s *Store) Namespace(ns string) []*Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(func(p *Profile) bool { return SameNamespace(p.Namespace(), ns) })
}

// Namespaces returns the distinct namespaces, sorted
func (s *Store) Namespaces() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var result []string
	for _, p := range s.profiles {
		ns := p.Namespace()
		key := normalizeKey(ns)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, ns)
	}
	sort.Strings(result)
	return result
}

// Len returns the number of profiles
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// Remove deletes a profile. It reports whether it existed.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = NormalizeName(name)
	if _, ok := s.profiles[name]; !ok {
		return false
	}
	delete(s.profiles, name)
	return true
}

// RemoveNamespace deletes every profile of a namespace and returns their names
func (s *Store) RemoveNamespace(ns string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for name, p := range s.profiles {
		if SameNamespace(p.Namespace(), ns) {
			delete(s.profiles, name)
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	return removed
}

// RemovePath drops path from every profile and returns the names of the
// profiles that contained it
func (s *Store) RemovePath(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected []string
	for name, p := range s.profiles {
		before := len(p.Members)
		p.Members = filterOut(p.Members, map[string]bool{path: true})
		if len(p.Members) != before {
			affected = append(affected, name)
		}
	}
	sort.Strings(affected)
	return affected
}

// AddPath appends path to the named profile's members, removing it from any
// other profile. It returns false if the profile does not exist. The centroid
// is left unchanged until the next UpdateProfile.
func (s *Store) AddPath(name, path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = NormalizeName(name)
	target, ok := s.profiles[name]
	if !ok {
		return false
	}
	for otherName, other := range s.profiles {
		if otherName != name {
			other.Members = filterOut(other.Members, map[string]bool{path: true})
		}
	}
	for _, m := range target.Members {
		if m == path {
			return true
		}
	}
	target.Members = append(target.Members, path)
	return true
}

// OwnerOf returns the name of the profile that has path as a member
func (s *Store) OwnerOf(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, p := range s.profiles {
		for _, m := range p.Members {
			if m == path {
				return name, true
			}
		}
	}
	return "", false
}

func (s *Store) sortedLocked(keep func(*Profile) bool) []*Profile {
	result := make([]*Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if keep(p) {
			result = append(result, p.clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func filterOut(paths []string, drop map[string]bool) []string {
	if len(drop) == 0 {
		return paths
	}
	out := paths[:0:0]
	for _, p := range paths {
		if !drop[p] {
			out = append(out, p)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}
