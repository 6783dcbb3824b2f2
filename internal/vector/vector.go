// Package vector implements the small amount of linear algebra the sorter needs:
// cosine similarity with a magnitude guard and elementwise means.
package vector

import (
	"errors"
	"fmt"
	"math"

	"github.com/kozaktomas/library-sorter/internal/constants"
)

// ErrDimensionMismatch is returned when vectors of different lengths are combined.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// CosineSimilarity computes dot(a,b) / (|a|*|b|).
// If either magnitude is below constants.MagnitudeEpsilon the similarity is 0, never NaN.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	magA, magB := math.Sqrt(normA), math.Sqrt(normB)
	if magA < constants.MagnitudeEpsilon || magB < constants.MagnitudeEpsilon {
		return 0, nil
	}

	sim := dot / (magA * magB)
	// Clamp to [-1, 1] to handle floating point errors
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim, nil
}

// Similarity is CosineSimilarity for callers that already guarantee equal
// dimensions. Mismatched vectors score 0.
func Similarity(a, b []float32) float64 {
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		return 0
	}
	return sim
}

// CosineDistance returns 1 - similarity, in [0, 2].
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}
	return 1 - Similarity(a, b)
}

// Mean returns the elementwise arithmetic mean of the vectors. No re-normalization is applied.
func Mean(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, errors.New("no vectors to average")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, errors.New("empty vector")
	}

	sum := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(v), dim)
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
	}

	mean := make([]float32, dim)
	n := float64(len(vectors))
	for i := range sum {
		mean[i] = float32(sum[i] / n)
	}
	return mean, nil
}

// IsFinite reports whether every component is a finite number.
func IsFinite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
