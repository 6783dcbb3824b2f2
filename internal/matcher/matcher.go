// Package matcher picks the profile whose centroid is closest to an image vector.
package matcher

import (
	"sort"

	"github.com/kozaktomas/library-sorter/internal/profile"
	"github.com/kozaktomas/library-sorter/internal/vector"
)

// Match is a candidate profile with its centroid similarity.
type Match struct {
	Profile    *profile.Profile `json:"profile"`
	Similarity float64          `json:"similarity"`
}

func candidate(p *profile.Profile, vec []float32, namespace string) (float64, bool) {
	if !p.HasCentroid() || len(p.Centroid) != len(vec) {
		return 0, false
	}
	if namespace != "" && !profile.SameNamespace(p.Namespace(), namespace) {
		return 0, false
	}
	return vector.Similarity(vec, p.Centroid), true
}

// Suggest returns the profile most similar to vec, if that similarity reaches
// threshold. profiles must be in the store's name order; on equal similarity
// the earlier profile wins. An empty namespace considers every profile.
func Suggest(profiles []*profile.Profile, vec []float32, threshold float64, namespace string) (Match, bool) {
	var best Match
	found := false
	for _, p := range profiles {
		sim, ok := candidate(p, vec, namespace)
		if !ok {
			continue
		}
		if !found || sim > best.Similarity {
			best = Match{Profile: p, Similarity: sim}
			found = true
		}
	}
	if !found || best.Similarity < threshold {
		return Match{}, false
	}
	return best, true
}

// Rank returns every candidate profile sorted by descending similarity,
// keeping name order among equals.
func Rank(profiles []*profile.Profile, vec []float32, namespace string) []Match {
	var result []Match
	for _, p := range profiles {
		if sim, ok := candidate(p, vec, namespace); ok {
			result = append(result, Match{Profile: p, Similarity: sim})
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Similarity > result[j].Similarity
	})
	return result
}
