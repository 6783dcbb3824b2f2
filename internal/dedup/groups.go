package dedup

import (
	"sort"

	"github.com/kozaktomas/library-sorter/internal/constants"
	"github.com/kozaktomas/library-sorter/internal/database"
	"github.com/kozaktomas/library-sorter/internal/imagemeta"
	"github.com/kozaktomas/library-sorter/internal/vector"
)

// groupNeighbors caps the HNSW neighbors examined per item when grouping.
const groupNeighbors = 32

// Item is an image with its feature vector.
type Item struct {
	Meta   imagemeta.Entry
	Vector []float32
}

// GroupDuplicates groups items around seeds. Items are visited in path order;
// each item not yet grouped seeds a group of every later ungrouped item whose
// similarity to the seed is at least constants.DuplicateThreshold. Similarity
// is not chained, so every member of a group is a duplicate of its seed.
// Only groups with two or more items are returned, ordered by seed path.
// Small inputs are compared pairwise; larger ones use an HNSW index whose
// hits are verified exactly.
func GroupDuplicates(items []Item) ([][]Item, error) {
	sorted := append([]Item(nil), items...)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Meta.Path < sorted[b].Meta.Path })

	candidates, err := candidateFinder(sorted)
	if err != nil {
		return nil, err
	}

	grouped := make([]bool, len(sorted))
	var result [][]Item
	for i := range sorted {
		if grouped[i] {
			continue
		}
		grouped[i] = true
		group := []Item{sorted[i]}

		others, err := candidates(i)
		if err != nil {
			return nil, err
		}
		for _, j := range others {
			if j <= i || grouped[j] {
				continue
			}
			grouped[j] = true
			group = append(group, sorted[j])
		}
		if len(group) > 1 {
			sort.Slice(group[1:], func(a, b int) bool { return group[1+a].Meta.Path < group[1+b].Meta.Path })
			result = append(result, group)
		}
	}
	return result, nil
}

// candidateFinder returns a function listing the indexes of items that are
// duplicates of item i, in ascending order.
func candidateFinder(items []Item) (func(i int) ([]int, error), error) {
	if len(items) <= constants.ExactScanLimit {
		return func(i int) ([]int, error) {
			var out []int
			for j := i + 1; j < len(items); j++ {
				if vector.Similarity(items[i].Vector, items[j].Vector) >= constants.DuplicateThreshold {
					out = append(out, j)
				}
			}
			return out, nil
		}, nil
	}

	index := database.NewVectorIndex()
	byPath := make(map[string]int, len(items))
	vectors := make(map[string][]float32, len(items))
	for i, it := range items {
		byPath[it.Meta.Path] = i
		vectors[it.Meta.Path] = it.Vector
	}
	if err := index.Build(vectors); err != nil {
		return nil, err
	}
	return func(i int) ([]int, error) {
		if _, ok := index.Vector(items[i].Meta.Path); !ok {
			return nil, nil
		}
		hits, err := index.SearchWithin(items[i].Vector, groupNeighbors, constants.DuplicateThreshold)
		if err != nil {
			return nil, err
		}
		var out []int
		for _, h := range hits {
			if j, ok := byPath[h.Path]; ok && j != i {
				out = append(out, j)
			}
		}
		sort.Ints(out)
		return out, nil
	}, nil
}

// BestOf picks the item to keep from a duplicate group. On a full quality tie
// the earliest item stays.
func BestOf(group []Item) (Item, []Item) {
	best := 0
	for i := 1; i < len(group); i++ {
		if imagemeta.Better(&group[i].Meta, &group[best].Meta) {
			best = i
		}
	}
	drop := make([]Item, 0, len(group)-1)
	for i, it := range group {
		if i != best {
			drop = append(drop, it)
		}
	}
	return group[best], drop
}
