// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Similarity constants
const (
	// DuplicateThreshold is the minimum pairwise cosine similarity for two images
	// to be treated as the same visual content
	DuplicateThreshold = 0.98

	// DefaultSuggestionThreshold is the default minimum centroid similarity for
	// proposing that an image belongs to a profile
	DefaultSuggestionThreshold = 0.85

	// OutlierThreshold is the minimum similarity to the preliminary centroid a
	// member vector needs to survive outlier rejection
	OutlierThreshold = 0.75

	// MagnitudeEpsilon is the vector magnitude below which cosine similarity is defined as 0
	MagnitudeEpsilon = 1e-6
)

// Cache constants
const (
	// ModTimeTolerance absorbs filesystem timestamp rounding when validating cache entries
	ModTimeTolerance = 2 * time.Second
)

// Processing constants
const (
	// EmbeddingConcurrency is the default number of concurrent embedding requests
	EmbeddingConcurrency = 4

	// EmbeddingBatchSize is the number of paths sent in one batch embedding request
	EmbeddingBatchSize = 16

	// EmbeddingMaxRetries is the number of retries for an unavailable embedding provider
	EmbeddingMaxRetries = 3

	// WorkerPoolSize is the default number of parallel workers for folder scans
	WorkerPoolSize = 8

	// UniqueNameMaxAttempts is the highest numeric suffix tried before falling back to a UUID
	UniqueNameMaxAttempts = 9999

	// ExactScanLimit is the member count up to which duplicate grouping compares
	// every pair instead of querying the HNSW index
	ExactScanLimit = 64
)

// Profile constants
const (
	// DefaultLabel is the label used for images stored directly in a namespace folder
	DefaultLabel = "General"

	// NameSeparator separates namespace and label in a profile name
	NameSeparator = " - "

	// SplitConsiderMinMembers is the minimum number of existing members for a profile
	// to be analysed for splitting
	SplitConsiderMinMembers = 10

	// SplitSuggestMinMembers is the member count at which a profile is flagged as a split candidate
	SplitSuggestMinMembers = 20
)

// Lock constants
const (
	// LibraryLockName is the lock file created in the library root while an operation runs
	LibraryLockName = ".library-sorter.lock"

	// LockTimeout is how long an operation waits for the library lock
	LockTimeout = 10 * time.Second
)
