package database

import (
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/library-sorter/internal/vector"
)

// Neighbor is a search hit with its exact cosine similarity.
type Neighbor struct {
	Path       string
	Similarity float64
}

// VectorIndex wraps the HNSW graph for nearest-neighbor search over image vectors.
// Keys are file paths. Every hit is re-verified with an exact cosine similarity,
// so the graph only narrows the candidate set.
type VectorIndex struct {
	graph   *hnsw.Graph[string]
	vectors map[string][]float32
	dim     int
	mu      sync.RWMutex
}

// NewVectorIndex creates a new empty index
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		vectors: make(map[string][]float32),
	}
}

// Build replaces the index contents. Empty vectors and vectors whose dimension
// differs from the first non-empty one are skipped.
func (idx *VectorIndex) Build(vectors map[string][]float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.graph = nil
	idx.dim = 0
	idx.vectors = make(map[string][]float32, len(vectors))

	// Sorted insertion keeps graph construction reproducible
	paths := make([]string, 0, len(vectors))
	for p := range vectors {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance

	for _, p := range paths {
		v := vectors[p]
		if len(v) == 0 {
			continue
		}
		if idx.dim == 0 {
			idx.dim = len(v)
		}
		if len(v) != idx.dim {
			continue
		}
		g.Add(hnsw.MakeNode(p, v))
		idx.vectors[p] = v
	}

	if len(idx.vectors) > 0 {
		idx.graph = g
	}
	return nil
}

// Count returns the number of indexed vectors
func (idx *VectorIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Vector returns the indexed vector for a path
func (idx *VectorIndex) Vector(path string) ([]float32, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v, ok := idx.vectors[path]
	return v, ok
}

// SearchWithin returns up to k neighbors of query whose exact similarity is at
// least minSimilarity, most similar first. Ties are ordered by path.
func (idx *VectorIndex) SearchWithin(query []float32, k int, minSimilarity float64) ([]Neighbor, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph == nil {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("%w: query %d, index %d", vector.ErrDimensionMismatch, len(query), idx.dim)
	}

	// Search with more candidates for better recall after filtering
	searchK := k * HNSWSearchMultiplier
	if searchK < 100 {
		searchK = 100
	}
	if searchK > len(idx.vectors) {
		searchK = len(idx.vectors)
	}

	hits := make([]Neighbor, 0, k)
	for _, n := range idx.graph.Search(query, searchK) {
		v, ok := idx.vectors[n.Key]
		if !ok {
			continue
		}
		sim := vector.Similarity(query, v)
		if sim < minSimilarity {
			continue
		}
		hits = append(hits, Neighbor{Path: n.Key, Similarity: sim})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Path < hits[j].Path
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
