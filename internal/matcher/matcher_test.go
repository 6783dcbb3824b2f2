package matcher

import (
	"testing"

	"github.com/kozaktomas/library-sorter/internal/profile"
)

func profiles() []*profile.Profile {
	return []*profile.Profile{
		{Name: "Anna - Beach", Centroid: []float32{1, 0}},
		{Name: "Anna - City", Centroid: []float32{1, 0}},
		{Name: "Anna - General"},
		{Name: "Zoe - Forest", Centroid: []float32{0, 1}},
		{Name: "Zoe - Wide", Centroid: []float32{0, 1, 0}},
	}
}

func TestSuggest(t *testing.T) {
	tests := []struct {
		name      string
		vec       []float32
		threshold float64
		namespace string
		want      string
	}{
		{"tie keeps first in name order", []float32{1, 0}, 0.9, "", "Anna - Beach"},
		{"namespace filter", []float32{1, 0}, 0, "zoe", "Zoe - Forest"},
		{"best across namespaces", []float32{0.1, 1}, 0.9, "", "Zoe - Forest"},
		{"below threshold", []float32{1, 1}, 0.99, "", ""},
		{"threshold is inclusive", []float32{1, 0}, 1.0, "", "Anna - Beach"},
		{"unknown namespace", []float32{1, 0}, 0, "Nobody", ""},
		{"zero vector", []float32{0, 0}, 0.5, "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, ok := Suggest(profiles(), tc.vec, tc.threshold, tc.namespace)
			if tc.want == "" {
				if ok {
					t.Errorf("expected no match, got %s (%.3f)", m.Profile.Name, m.Similarity)
				}
				return
			}
			if !ok {
				t.Fatalf("expected match %s, got none", tc.want)
			}
			if m.Profile.Name != tc.want {
				t.Errorf("got %s, want %s", m.Profile.Name, tc.want)
			}
		})
	}
}

func TestSuggest_NoCandidates(t *testing.T) {
	if _, ok := Suggest(nil, []float32{1}, 0, ""); ok {
		t.Error("expected no match for empty profile list")
	}
}

func TestRank(t *testing.T) {
	ranked := Rank(profiles(), []float32{1, 0.1}, "")
	if len(ranked) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(ranked))
	}
	if ranked[0].Profile.Name != "Anna - Beach" || ranked[1].Profile.Name != "Anna - City" {
		t.Errorf("unexpected order: %s, %s", ranked[0].Profile.Name, ranked[1].Profile.Name)
	}
	if ranked[2].Profile.Name != "Zoe - Forest" {
		t.Errorf("expected Zoe - Forest last, got %s", ranked[2].Profile.Name)
	}
}
