package database

import (
	"time"
)

// CacheEntry is a feature vector computed for one file, valid while the file's
// size and modification time still match.
type CacheEntry struct {
	Path    string
	Vector  []float32
	ModTime time.Time // UTC
	Size    int64
}

// StoredProfile is the persisted form of a category profile.
type StoredProfile struct {
	Namespace    string
	Name         string
	Centroid     []float32 // nil when the profile has no usable vectors
	Members      []string
	LastComputed time.Time
}
