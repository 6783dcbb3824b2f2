package sorter

import (
	"context"

	"github.com/kozaktomas/library-sorter/internal/dedup"
	"github.com/kozaktomas/library-sorter/internal/reconcile"
)

// Apply executes approved proposals in order and rebuilds the profiles whose
// membership changed. Applied sources are dropped from the pending proposals.
// Actions whose source or target lies outside the library root are skipped.
func (s *Service) Apply(ctx context.Context, actions []dedup.ProposedAction, progress ProgressFunc) (reconcile.Summary, error) {
	if s.root == "" {
		return reconcile.Summary{}, ErrNoLibraryRoot
	}
	orch := reconcile.NewOrchestrator(s.root, s.store, s.cache, s)
	summary, err := orch.Apply(ctx, actions, func(processed, total int, message string) {
		progress.report(ProgressInfo{Phase: "applying", Current: processed, Total: total, Message: message})
	})

	done := make(map[string]bool, len(actions))
	for i, a := range actions {
		// Items after a cancellation were never attempted
		if err != nil && i >= summary.Total() {
			break
		}
		done[a.SourcePath] = true
	}
	s.forgetProposals(done)
	return summary, err
}
