// Package constants provides shared constants used across the codebase.
package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// Handler constants
const (
	// DefaultRankLimit is the default number of ranked profiles returned by the match endpoint
	DefaultRankLimit = 5

	// MaxRequestBodySize is the maximum accepted JSON request body size in bytes (10MB)
	MaxRequestBodySize = 10 << 20
)
