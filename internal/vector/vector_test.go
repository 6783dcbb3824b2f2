package vector

import (
	"errors"
	"math"
	"testing"
)

func TestCosineSimilarity_Identical(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0.3, -0.7, 2.5},
		{1e-3, 1e-3, 1e-3},
	}
	for _, v := range vectors {
		sim, err := CosineSimilarity(v, v)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(sim-1) > 1e-9 {
			t.Errorf("expected similarity 1 for %v, got %f", v, sim)
		}
	}
}

func TestCosineSimilarity_ZeroVector(t *testing.T) {
	a := []float32{1, 2, 3}
	zero := []float32{0, 0, 0}

	sim, err := CosineSimilarity(a, zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sim != 0 || math.IsNaN(sim) {
		t.Errorf("expected 0 for zero vector, got %f", sim)
	}

	tiny := []float32{1e-9, 0, 0}
	if sim, _ := CosineSimilarity(a, tiny); sim != 0 {
		t.Errorf("expected 0 below epsilon, got %f", sim)
	}
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(sim) > 1e-9 {
		t.Errorf("expected 0 for orthogonal vectors, got %f", sim)
	}
}

func TestCosineSimilarity_Opposite(t *testing.T) {
	sim, _ := CosineSimilarity([]float32{1, 2}, []float32{-1, -2})
	if math.Abs(sim+1) > 1e-9 {
		t.Errorf("expected -1, got %f", sim)
	}
}

func TestCosineSimilarity_MismatchedLength(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if Similarity([]float32{1}, []float32{1, 2}) != 0 {
		t.Error("expected Similarity to return 0 on mismatch")
	}
}

func TestCosineDistance(t *testing.T) {
	if d := CosineDistance([]float32{1, 0}, []float32{1, 0}); math.Abs(d) > 1e-9 {
		t.Errorf("expected distance 0, got %f", d)
	}
	if d := CosineDistance(nil, nil); d != 2.0 {
		t.Errorf("expected max distance for empty input, got %f", d)
	}
}

func TestMean(t *testing.T) {
	mean, err := Mean([][]float32{{1, 2}, {3, 4}, {5, 6}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mean[0] != 3 || mean[1] != 4 {
		t.Errorf("expected [3 4], got %v", mean)
	}
}

func TestMean_Errors(t *testing.T) {
	if _, err := Mean(nil); err == nil {
		t.Error("expected error for no vectors")
	}
	if _, err := Mean([][]float32{{}}); err == nil {
		t.Error("expected error for empty vector")
	}
	if _, err := Mean([][]float32{{1, 2}, {1}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite([]float32{1, -2, 0}) {
		t.Error("expected finite vector")
	}
	if IsFinite([]float32{1, float32(math.NaN())}) {
		t.Error("expected NaN to be rejected")
	}
	if IsFinite([]float32{float32(math.Inf(1))}) {
		t.Error("expected Inf to be rejected")
	}
}
