package sorter

import (
	"context"
	"log"

	"github.com/kozaktomas/library-sorter/internal/dedup"
	"github.com/kozaktomas/library-sorter/internal/fileops"
)

// DedupResult summarizes a duplicate removal pass.
type DedupResult struct {
	Profiles     int      `json:"profiles"`
	Groups       int      `json:"groups"`
	Deleted      []string `json:"deleted"`
	DeleteErrors int      `json:"delete_errors"`
	Recomputed   []string `json:"recomputed,omitempty"`
}

// RemoveDuplicates finds groups of near-identical members inside each profile
// of a namespace, keeps the best file of every group and deletes the rest.
func (s *Service) RemoveDuplicates(ctx context.Context, ns string, progress ProgressFunc) (*DedupResult, error) {
	profiles := s.store.Namespace(ns)
	result := &DedupResult{Profiles: len(profiles), Deleted: []string{}}
	affected := make(map[string]bool)

	var runErr error
	for i, p := range profiles {
		if runErr = ctx.Err(); runErr != nil {
			break
		}
		progress.report(ProgressInfo{Phase: "scanning", Current: i + 1, Total: len(profiles), Message: p.Name})

		var items []dedup.Item
		items, runErr = s.vectorsFor(ctx, p.Members, "embedding", nil)
		if runErr != nil {
			break
		}
		groups, err := dedup.GroupDuplicates(items)
		if err != nil {
			log.Printf("Warning: grouping duplicates of %s: %v", p.Name, err)
			continue
		}

		for _, g := range groups {
			result.Groups++
			keep, drop := dedup.BestOf(g)
			for _, d := range drop {
				if err := fileops.Delete(d.Meta.Path); err != nil {
					log.Printf("Warning: deleting duplicate %s: %v", d.Meta.Path, err)
					result.DeleteErrors++
					continue
				}
				log.Printf("Deleted %s, duplicate of %s", d.Meta.Path, keep.Meta.Path)
				if err := s.cache.Invalidate(ctx, d.Meta.Path); err != nil {
					log.Printf("Warning: invalidating cache for %s: %v", d.Meta.Path, err)
				}
				for _, name := range s.store.RemovePath(d.Meta.Path) {
					affected[name] = true
				}
				result.Deleted = append(result.Deleted, d.Meta.Path)
			}
		}
	}

	if len(affected) > 0 {
		names := sortedNames(affected)
		if err := s.RebuildProfiles(context.WithoutCancel(ctx), names); err != nil {
			return result, err
		}
		result.Recomputed = names
	}
	return result, runErr
}
