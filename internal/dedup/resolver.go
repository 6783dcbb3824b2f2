package dedup

import (
	"context"
	"log"
	"path/filepath"
	"sync"

	"github.com/kozaktomas/library-sorter/internal/fileops"
	"github.com/kozaktomas/library-sorter/internal/imagemeta"
	"github.com/kozaktomas/library-sorter/internal/vector"
)

// VectorFunc returns the feature vector of a file, normally through the cache.
type VectorFunc func(ctx context.Context, entry imagemeta.Entry) ([]float32, error)

// Result is the outcome of resolving one source image.
type Result struct {
	Decision    DecisionKind
	Action      *ProposedAction
	AutoHandled bool
	// Affected lists the profiles whose membership changed through an automatic action.
	Affected []string
}

type folderItem struct {
	meta imagemeta.Entry
	vec  []float32
}

// Resolver gathers the facts for Decide from a profile folder and runs
// automatic decisions through the Executor. Folder contents are remembered
// for the lifetime of the resolver, so use one resolver per scan.
type Resolver struct {
	scanner   *imagemeta.Scanner
	vectors   VectorFunc
	executor  *Executor
	threshold float64
	suggested *SuggestedSet

	mu      sync.Mutex
	folders map[string][]folderItem
}

// NewResolver creates a resolver. suggested may be nil to disable in-batch suppression.
func NewResolver(scanner *imagemeta.Scanner, vectors VectorFunc, executor *Executor, threshold float64, suggested *SuggestedSet) *Resolver {
	return &Resolver{
		scanner:   scanner,
		vectors:   vectors,
		executor:  executor,
		threshold: threshold,
		suggested: suggested,
		folders:   make(map[string][]folderItem),
	}
}

// Resolve decides what happens to src, which matched profileName with
// similarity sim. Unreadable files in the folder are skipped.
func (r *Resolver) Resolve(ctx context.Context, src imagemeta.Entry, profileName string, sim float64, targetFolder string, srcVec []float32) (Result, error) {
	items, err := r.folderItems(ctx, targetFolder)
	if err != nil {
		return Result{}, err
	}

	existing := make([]Existing, 0, len(items))
	for _, it := range items {
		if imagemeta.SamePath(it.meta.Path, src.Path) {
			continue
		}
		existing = append(existing, Existing{Meta: it.meta, Similarity: vector.Similarity(srcVec, it.vec)})
	}

	in := DecisionInput{
		Source:       src,
		Profile:      profileName,
		Similarity:   sim,
		Existing:     existing,
		Threshold:    r.threshold,
		TargetFolder: targetFolder,
	}
	target := filepath.Join(targetFolder, filepath.Base(src.Path))
	if fileops.Exists(target) {
		if occ, err := imagemeta.Stat(target); err == nil {
			in.Occupant = occ
		}
	}

	d := Decide(in)
	res := Result{Decision: d.Kind}

	switch d.Kind {
	case DecisionAutoReplaceExisting, DecisionAutoDeleteSource:
		affected, err := r.executor.Apply(ctx, d)
		r.forget(targetFolder)
		if err != nil {
			return res, err
		}
		res.AutoHandled = true
		res.Affected = affected
	case DecisionPropose:
		if r.suggested != nil && !r.suggested.TryAdd(profileName, srcVec) {
			res.Decision = DecisionNone
			return res, nil
		}
		res.Action = d.Action
	}
	return res, nil
}

func (r *Resolver) folderItems(ctx context.Context, folder string) ([]folderItem, error) {
	r.mu.Lock()
	items, ok := r.folders[folder]
	r.mu.Unlock()
	if ok {
		return items, nil
	}

	paths, err := r.scanner.ListFiles(folder)
	if err != nil {
		return nil, err
	}

	items = make([]folderItem, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		meta, err := imagemeta.Extract(p)
		if err != nil {
			log.Printf("Warning: skipping %s: %v", p, err)
			continue
		}
		vec, err := r.vectors(ctx, *meta)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("Warning: skipping %s: %v", p, err)
			continue
		}
		items = append(items, folderItem{meta: *meta, vec: vec})
	}

	r.mu.Lock()
	r.folders[folder] = items
	r.mu.Unlock()
	return items, nil
}

func (r *Resolver) forget(folder string) {
	r.mu.Lock()
	delete(r.folders, folder)
	r.mu.Unlock()
}
