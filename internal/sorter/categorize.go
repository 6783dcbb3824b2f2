package sorter

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/kozaktomas/library-sorter/internal/dedup"
	"github.com/kozaktomas/library-sorter/internal/imagemeta"
	"github.com/kozaktomas/library-sorter/internal/matcher"
)

// CategorizeOptions selects what a categorization pass scans.
type CategorizeOptions struct {
	Namespace  string // scan one namespace
	All        bool   // scan every namespace that has profiles
	OnProgress ProgressFunc
}

// CategorizeResult summarizes a categorization pass.
type CategorizeResult struct {
	Scanned     int                    `json:"scanned"`
	WithVectors int                    `json:"with_vectors"`
	Matched     int                    `json:"matched"`
	AutoActions int                    `json:"auto_actions"`
	Proposals   []dedup.ProposedAction `json:"proposals"`
	Recomputed  []string               `json:"recomputed,omitempty"`
}

type candidate struct {
	path  string
	ns    string
	nsDir string
}

type matched struct {
	entry imagemeta.Entry
	vec   []float32
	match matcher.Match
	cand  candidate
}

// Categorize scans the source folders of one namespace, or of all of them,
// matches every image against that namespace's profiles and resolves the
// matches. Duplicates are handled automatically; everything else is returned
// as proposals, which also become the pending proposals of the service.
func (s *Service) Categorize(ctx context.Context, opts CategorizeOptions) (*CategorizeResult, error) {
	progress := opts.OnProgress

	namespaces, err := s.categorizeNamespaces(opts)
	if err != nil {
		return nil, err
	}

	progress.report(ProgressInfo{Phase: "scanning", Message: "listing source folders", Indeterminate: true})
	var cands []candidate
	for _, ns := range namespaces {
		nsDir, err := s.namespaceDir(ns)
		if err != nil {
			if opts.All {
				log.Printf("Warning: %v", err)
				continue
			}
			return nil, err
		}
		found, err := s.sourceFiles(nsDir)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			cands = append(cands, candidate{path: p, ns: ns, nsDir: nsDir})
		}
	}

	result := &CategorizeResult{Scanned: len(cands), Proposals: []dedup.ProposedAction{}}
	log.Printf("Categorize: %d candidate files in %d namespaces", len(cands), len(namespaces))

	matches, withVectors, err := s.matchCandidates(ctx, cands, progress)
	if err != nil {
		return nil, err
	}
	result.WithVectors = withVectors
	result.Matched = len(matches)

	suggested := dedup.NewSuggestedSet()
	executor := dedup.NewExecutor(s.store, s.cache)
	resolver := dedup.NewResolver(s.scanner, s.vectorFor, executor, s.threshold, suggested)

	affected := make(map[string]bool)
	var resolveErr error
	for i, m := range matches {
		if err := ctx.Err(); err != nil {
			resolveErr = err
			break
		}
		progress.report(ProgressInfo{Phase: "resolving", Current: i + 1, Total: len(matches), Path: m.entry.Path})

		name := m.match.Profile.Name
		res, err := resolver.Resolve(ctx, m.entry, name, m.match.Similarity, TargetFolder(m.cand.nsDir, name), m.vec)
		if err != nil {
			if ctx.Err() != nil {
				resolveErr = ctx.Err()
				break
			}
			log.Printf("Warning: resolving %s: %v", m.entry.Path, err)
			continue
		}
		if res.AutoHandled {
			result.AutoActions++
		}
		for _, name := range res.Affected {
			affected[name] = true
		}
		if res.Action != nil {
			result.Proposals = append(result.Proposals, *res.Action)
		}
	}

	if len(affected) > 0 {
		names := sortedNames(affected)
		if err := s.RebuildProfiles(context.WithoutCancel(ctx), names); err != nil {
			log.Printf("Warning: rebuilding profiles after automatic actions: %v", err)
		} else {
			result.Recomputed = names
		}
	}
	if resolveErr != nil {
		return result, resolveErr
	}

	s.setProposals(result.Proposals)
	log.Printf("Categorize: %d scanned, %d matched, %d automatic, %d proposals",
		result.Scanned, result.Matched, result.AutoActions, len(result.Proposals))
	return result, nil
}

func (s *Service) categorizeNamespaces(opts CategorizeOptions) ([]string, error) {
	if !opts.All {
		if opts.Namespace == "" {
			return nil, fmt.Errorf("namespace is required")
		}
		return []string{opts.Namespace}, nil
	}

	var out []string
	for _, ns := range s.store.Namespaces() {
		for _, p := range s.store.Namespace(ns) {
			if p.HasCentroid() {
				out = append(out, ns)
				break
			}
		}
	}
	return out, nil
}

// sourceFiles returns the supported images below the source folders of a namespace.
func (s *Service) sourceFiles(nsDir string) ([]string, error) {
	entries, err := os.ReadDir(nsDir)
	if err != nil {
		return nil, fmt.Errorf("read namespace folder: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() || !s.sources.Contains(e.Name()) {
			continue
		}
		found, err := s.scanner.ScanDirectory(filepath.Join(nsDir, e.Name()))
		if err != nil {
			log.Printf("Warning: %v", err)
			continue
		}
		files = append(files, found...)
	}
	return files, nil
}

// matchCandidates computes vectors for the candidates and matches each
// against its namespace. Matches keep candidate order.
func (s *Service) matchCandidates(ctx context.Context, cands []candidate, progress ProgressFunc) ([]matched, int, error) {
	paths := make([]string, len(cands))
	byPath := make(map[string]candidate, len(cands))
	for i, c := range cands {
		paths[i] = c.path
		byPath[c.path] = c
	}

	items, err := s.vectorsFor(ctx, paths, "matching", progress)
	if err != nil {
		return nil, 0, err
	}

	profiles := s.store.All()
	var out []matched
	for _, it := range items {
		c := byPath[it.Meta.Path]
		if m, ok := matcher.Suggest(profiles, it.Vector, s.threshold, c.ns); ok {
			out = append(out, matched{entry: it.Meta, vec: it.Vector, match: m, cand: c})
		}
	}
	return out, len(items), nil
}

func sortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Rank returns every profile of namespace ordered by similarity to the image
// at path. An empty namespace ranks all profiles.
func (s *Service) Rank(ctx context.Context, path, namespace string, limit int) ([]matcher.Match, error) {
	entry, err := imagemeta.Stat(path)
	if err != nil {
		return nil, err
	}
	vec, err := s.vectorFor(ctx, *entry)
	if err != nil {
		return nil, err
	}
	ranked := matcher.Rank(s.store.All(), vec, namespace)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
