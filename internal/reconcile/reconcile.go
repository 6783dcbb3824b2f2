// Package reconcile applies approved proposals to the file system and brings
// profile membership up to date afterwards.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/kozaktomas/library-sorter/internal/dedup"
	"github.com/kozaktomas/library-sorter/internal/fileops"
	"github.com/kozaktomas/library-sorter/internal/imagemeta"
	"github.com/kozaktomas/library-sorter/internal/profile"
)

// Summary counts the outcome of a batch.
type Summary struct {
	Succeeded      int `json:"succeeded"`
	SkippedQuality int `json:"skipped_quality"`
	SkippedOther   int `json:"skipped_other"`
	CopyErrors     int `json:"copy_errors"`
	DeleteErrors   int `json:"delete_errors"`
	// Recomputed lists the profiles rebuilt after the batch.
	Recomputed []string `json:"recomputed,omitempty"`
}

// Total returns the number of items accounted for.
func (s Summary) Total() int {
	return s.Succeeded + s.SkippedQuality + s.SkippedOther + s.CopyErrors + s.DeleteErrors
}

// ProgressFunc is called after each item with the number processed so far.
type ProgressFunc func(processed, total int, message string)

// Rebuilder recomputes and persists the given profiles from their members.
type Rebuilder interface {
	RebuildProfiles(ctx context.Context, names []string) error
}

// Orchestrator applies approved actions one at a time, in order.
type Orchestrator struct {
	root      string
	store     *profile.Store
	cache     dedup.Invalidator
	rebuilder Rebuilder
}

// NewOrchestrator creates an orchestrator that only touches files under root.
// cache and rebuilder may be nil.
func NewOrchestrator(root string, store *profile.Store, cache dedup.Invalidator, rebuilder Rebuilder) *Orchestrator {
	return &Orchestrator{root: root, store: store, cache: cache, rebuilder: rebuilder}
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeSkippedQuality
	outcomeSkippedOther
	outcomeCopyError
	outcomeDeleteError
)

// Apply executes actions in input order. Cancellation is checked between
// items; an item that started always finishes. Nothing is rolled back. The
// only error returned is the context error, together with the partial summary.
// Afterwards every profile whose membership changed is rebuilt, even when the
// batch was cancelled.
func (o *Orchestrator) Apply(ctx context.Context, actions []dedup.ProposedAction, progress ProgressFunc) (Summary, error) {
	var summary Summary
	affected := make(map[string]bool)

	var runErr error
	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		result, realized := o.applyOne(ctx, action)
		switch result {
		case outcomeSucceeded:
			summary.Succeeded++
			for _, name := range o.store.RemovePath(action.SourcePath) {
				affected[name] = true
			}
			if realized != "" && action.TargetProfile != "" {
				if o.store.AddPath(action.TargetProfile, realized) {
					affected[profile.NormalizeName(action.TargetProfile)] = true
				} else {
					log.Printf("Warning: target profile %s not found for %s", action.TargetProfile, realized)
				}
			}
		case outcomeSkippedQuality:
			summary.SkippedQuality++
		case outcomeSkippedOther:
			summary.SkippedOther++
		case outcomeCopyError:
			summary.CopyErrors++
		case outcomeDeleteError:
			summary.DeleteErrors++
		}

		if progress != nil {
			progress(i+1, len(actions), action.SourcePath)
		}
	}

	if len(affected) > 0 && o.rebuilder != nil {
		names := make([]string, 0, len(affected))
		for name := range affected {
			names = append(names, name)
		}
		sort.Strings(names)
		// Membership already changed on disk, so rebuild without the cancelled context
		if err := o.rebuilder.RebuildProfiles(context.WithoutCancel(ctx), names); err != nil {
			log.Printf("Warning: rebuilding profiles after apply: %v", err)
		}
		summary.Recomputed = names
	}

	return summary, runErr
}

// applyOne performs one action and returns its outcome and, for a completed
// move, the path the file ended up at (or the kept existing path).
func (o *Orchestrator) applyOne(ctx context.Context, a dedup.ProposedAction) (outcome, string) {
	if !imagemeta.Within(o.root, a.SourcePath) || !imagemeta.Within(o.root, a.TargetPath) {
		log.Printf("Skipping %s: source or target %s is outside the library", a.SourcePath, a.TargetPath)
		return outcomeSkippedOther, ""
	}
	if !fileops.Exists(a.SourcePath) {
		log.Printf("Skipping %s: source no longer exists", a.SourcePath)
		return outcomeSkippedOther, ""
	}

	switch a.Kind {
	case dedup.KindCopyNew:
		if imagemeta.SamePath(a.SourcePath, a.TargetPath) {
			return outcomeSucceeded, a.TargetPath
		}
		target := a.TargetPath
		if fileops.Exists(target) {
			target = UniquePath(a.TargetPath, suffixNew)
		}
		return o.copyThenDelete(ctx, a.SourcePath, target, false)

	case dedup.KindOverwriteExisting:
		if imagemeta.SamePath(a.SourcePath, a.TargetPath) {
			return outcomeSucceeded, a.TargetPath
		}
		return o.copyThenDelete(ctx, a.SourcePath, a.TargetPath, true)

	case dedup.KindKeepExistingDeleteSource:
		if imagemeta.SamePath(a.SourcePath, a.TargetPath) {
			return outcomeSkippedQuality, ""
		}
		if !fileops.Exists(a.TargetPath) {
			log.Printf("Skipping %s: kept file %s is missing", a.SourcePath, a.TargetPath)
			return outcomeSkippedOther, ""
		}
		if err := fileops.Delete(a.SourcePath); err != nil {
			log.Printf("Delete error: %v", err)
			return outcomeDeleteError, ""
		}
		o.invalidate(ctx, a.SourcePath)
		return outcomeSucceeded, a.TargetPath

	case dedup.KindConflictKeepBoth:
		return o.copyThenDelete(ctx, a.SourcePath, UniquePath(a.TargetPath, suffixConflict), false)

	default:
		return outcomeSkippedOther, ""
	}
}

func (o *Orchestrator) copyThenDelete(ctx context.Context, src, dst string, overwrite bool) (outcome, string) {
	if err := fileops.Copy(src, dst, overwrite); err != nil {
		if errors.Is(err, fileops.ErrTargetExists) {
			log.Printf("Copy error: %s appeared during apply: %v", dst, err)
		} else {
			log.Printf("Copy error: %v", err)
		}
		return outcomeCopyError, ""
	}
	if overwrite {
		o.invalidate(ctx, dst)
	}

	if err := fileops.Delete(src); err != nil {
		log.Printf("Delete error: %v", err)
		return outcomeDeleteError, ""
	}
	o.invalidate(ctx, src)
	return outcomeSucceeded, dst
}

func (o *Orchestrator) invalidate(ctx context.Context, path string) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Invalidate(ctx, path); err != nil {
		log.Printf("Warning: %v", fmt.Errorf("invalidate after apply: %w", err))
	}
}
