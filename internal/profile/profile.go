// Package profile owns the category profiles: their centroid computation,
// membership bookkeeping and persistence.
package profile

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/library-sorter/internal/constants"
	"github.com/kozaktomas/library-sorter/internal/database"
	"github.com/kozaktomas/library-sorter/internal/vector"
)

// ErrProfileCorrupt marks a stored profile that failed validation on load.
var ErrProfileCorrupt = errors.New("profile corrupt")

// Profile is a named category with the centroid of its member vectors.
type Profile struct {
	Name         string    `json:"name"`
	Centroid     []float32 `json:"centroid,omitempty"`
	Members      []string  `json:"members"`
	LastComputed time.Time `json:"last_computed"`
}

// Namespace returns the part of the name before the separator.
func (p *Profile) Namespace() string {
	return NamespaceOf(p.Name)
}

// Label returns the part of the name after the separator.
func (p *Profile) Label() string {
	_, label := ParseName(p.Name)
	return label
}

// HasCentroid reports whether the profile can take part in matching.
func (p *Profile) HasCentroid() bool {
	return len(p.Centroid) > 0
}

func (p *Profile) clone() *Profile {
	c := *p
	if p.Centroid != nil {
		c.Centroid = append([]float32(nil), p.Centroid...)
	}
	c.Members = append([]string{}, p.Members...)
	return &c
}

// ComputeCentroid averages the usable vectors, drops outliers below
// constants.OutlierThreshold similarity to the preliminary mean and averages
// the survivors. It returns a nil centroid when no usable vector exists or
// the vectors disagree on dimension.
func ComputeCentroid(vectors [][]float32, paths []string) ([]float32, []string) {
	var vecs [][]float32
	var kept []string
	for i, v := range vectors {
		if i >= len(paths) || len(v) == 0 {
			continue
		}
		vecs = append(vecs, v)
		kept = append(kept, paths[i])
	}
	if len(vecs) == 0 {
		return nil, []string{}
	}

	prelim, err := vector.Mean(vecs)
	if err != nil {
		log.Printf("Warning: preliminary centroid failed: %v", err)
		return nil, kept
	}

	var survivors [][]float32
	var members []string
	for i, v := range vecs {
		if vector.Similarity(v, prelim) >= constants.OutlierThreshold {
			survivors = append(survivors, v)
			members = append(members, kept[i])
		}
	}

	// Outlier rejection alone never empties a profile
	if len(survivors) == 0 {
		return prelim, kept
	}

	final, err := vector.Mean(survivors)
	if err != nil {
		return prelim, kept
	}
	return final, members
}

// ToStored converts a profile for persistence.
func ToStored(p *Profile) database.StoredProfile {
	return database.StoredProfile{
		Namespace:    p.Namespace(),
		Name:         p.Name,
		Centroid:     p.Centroid,
		Members:      p.Members,
		LastComputed: p.LastComputed,
	}
}

// FromStored validates a stored profile and normalizes its name.
func FromStored(sp database.StoredProfile) (*Profile, error) {
	if sp.Name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrProfileCorrupt)
	}
	if len(sp.Centroid) > 0 && !vector.IsFinite(sp.Centroid) {
		return nil, fmt.Errorf("%w: %s has a non-finite centroid", ErrProfileCorrupt, sp.Name)
	}
	p := &Profile{
		Name:         NormalizeName(sp.Name),
		Centroid:     sp.Centroid,
		Members:      sp.Members,
		LastComputed: sp.LastComputed.UTC(),
	}
	if len(p.Centroid) == 0 {
		p.Centroid = nil
	}
	if p.Members == nil {
		p.Members = []string{}
	}
	return p, nil
}
