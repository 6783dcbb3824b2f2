package dedup

import (
	"sync"

	"github.com/kozaktomas/library-sorter/internal/constants"
	"github.com/kozaktomas/library-sorter/internal/vector"
)

// SuggestedSet remembers the vectors already proposed per profile during one
// scan, so a near-identical second candidate is not proposed as well.
type SuggestedSet struct {
	mu        sync.Mutex
	byProfile map[string][][]float32
}

// NewSuggestedSet creates an empty set
func NewSuggestedSet() *SuggestedSet {
	return &SuggestedSet{byProfile: make(map[string][][]float32)}
}

// TryAdd records vec for profile and returns true, unless an already
// recorded vector of that profile is a duplicate of it.
func (s *SuggestedSet) TryAdd(profile string, vec []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.byProfile[profile] {
		if vector.Similarity(vec, other) >= constants.DuplicateThreshold {
			return false
		}
	}
	s.byProfile[profile] = append(s.byProfile[profile], vec)
	return true
}

// Len returns the number of recorded vectors
func (s *SuggestedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.byProfile {
		n += len(v)
	}
	return n
}
