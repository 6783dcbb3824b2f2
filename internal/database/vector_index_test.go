package database

import (
	"errors"
	"testing"

	"github.com/kozaktomas/library-sorter/internal/vector"
)

func TestVectorIndex_SearchWithin(t *testing.T) {
	idx := NewVectorIndex()
	err := idx.Build(map[string][]float32{
		"/lib/a.jpg": {1, 0, 0},
		"/lib/b.jpg": {0.99, 0.01, 0},
		"/lib/c.jpg": {0, 1, 0},
		"/lib/d.jpg": {0, 0, 1},
		"/lib/e.jpg": {},
		"/lib/f.jpg": {1, 0},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := idx.Count(); got != 4 {
		t.Errorf("Count() = %d, want 4", got)
	}

	hits, err := idx.SearchWithin([]float32{1, 0, 0}, 10, 0.98)
	if err != nil {
		t.Fatalf("SearchWithin: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d: %+v", len(hits), hits)
	}
	if hits[0].Path != "/lib/a.jpg" || hits[1].Path != "/lib/b.jpg" {
		t.Errorf("unexpected order: %+v", hits)
	}
	if hits[0].Similarity < hits[1].Similarity {
		t.Errorf("hits not sorted by similarity: %+v", hits)
	}
}

func TestVectorIndex_Limit(t *testing.T) {
	idx := NewVectorIndex()
	if err := idx.Build(map[string][]float32{
		"a": {1, 0},
		"b": {1, 0},
		"c": {1, 0},
	}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	hits, err := idx.SearchWithin([]float32{1, 0}, 2, 0.5)
	if err != nil {
		t.Fatalf("SearchWithin: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	// Equal similarity falls back to path order
	if hits[0].Path != "a" || hits[1].Path != "b" {
		t.Errorf("unexpected tie order: %+v", hits)
	}
}

func TestVectorIndex_Empty(t *testing.T) {
	idx := NewVectorIndex()
	if err := idx.Build(nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	hits, err := idx.SearchWithin([]float32{1, 0}, 5, 0)
	if err != nil {
		t.Fatalf("SearchWithin on empty index: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %+v", hits)
	}
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	idx := NewVectorIndex()
	if err := idx.Build(map[string][]float32{"a": {1, 0, 0}}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	_, err := idx.SearchWithin([]float32{1, 0}, 5, 0)
	if !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0.5, -1.25, 3}
	out, err := DecodeVector(EncodeVector(in))
	if err != nil {
		t.Fatalf("DecodeVector: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("index %d: got %v, want %v", i, out[i], in[i])
		}
	}

	for _, blob := range [][]byte{nil, {1, 2, 3}} {
		if _, err := DecodeVector(blob); !errors.Is(err, ErrCorruptEntry) {
			t.Errorf("DecodeVector(%v) error = %v, want ErrCorruptEntry", blob, err)
		}
	}
}
