package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/kozaktomas/library-sorter/internal/dedup"
	"github.com/kozaktomas/library-sorter/internal/sorter"
	"github.com/kozaktomas/library-sorter/internal/supervisor"
)

// OperationsHandler starts and tracks long-running library operations.
// Starting an operation cancels the one that is running.
type OperationsHandler struct {
	service    *sorter.Service
	supervisor *supervisor.Supervisor
}

// NewOperationsHandler creates a new operations handler
func NewOperationsHandler(svc *sorter.Service, sup *supervisor.Supervisor) *OperationsHandler {
	return &OperationsHandler{service: svc, supervisor: sup}
}

// MatchRequest selects the namespaces to categorize.
type MatchRequest struct {
	Namespace string `json:"namespace"`
	All       bool   `json:"all"`
}

// ApprovedAction is a proposal with the reviewer's decision.
type ApprovedAction struct {
	dedup.ProposedAction
	Approved bool `json:"approved"`
}

// ApplyRequest carries the reviewed proposals.
type ApplyRequest struct {
	Actions []ApprovedAction `json:"actions"`
}

// GenerateRequest builds a profile from a folder.
type GenerateRequest struct {
	Name   string `json:"name"`
	Folder string `json:"folder"`
}

// DedupRequest selects the namespace to deduplicate.
type DedupRequest struct {
	Namespace string `json:"namespace"`
}

func (h *OperationsHandler) start(w http.ResponseWriter, name string, fn supervisor.Func) {
	launch(w, h.supervisor, name, fn)
}

// launch runs fn in the background and answers 202 with its id.
func launch(w http.ResponseWriter, sup *supervisor.Supervisor, name string, fn supervisor.Func) {
	op := sup.Start(name, fn)
	log.Printf("Started operation %s (%s)", name, op.ID)
	respondJSON(w, http.StatusAccepted, map[string]string{
		"operation_id": op.ID,
		"operation":    name,
		"status":       string(op.GetStatus()),
	})
}

// Match starts a categorization pass.
func (h *OperationsHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.All && req.Namespace == "" {
		respondError(w, http.StatusBadRequest, "namespace is required unless all is set")
		return
	}

	h.start(w, "match", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		return h.service.Categorize(ctx, sorter.CategorizeOptions{
			Namespace:  req.Namespace,
			All:        req.All,
			OnProgress: sorter.ReportTo(op),
		})
	})
}

// Apply starts applying the approved actions, in request order.
func (h *OperationsHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var actions []dedup.ProposedAction
	for _, a := range req.Actions {
		if a.Approved {
			actions = append(actions, a.ProposedAction)
		}
	}
	if len(actions) == 0 {
		respondError(w, http.StatusBadRequest, "no approved actions")
		return
	}

	h.start(w, "apply", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		summary, err := h.service.Apply(ctx, actions, sorter.ReportTo(op))
		return summary, err
	})
}

// Generate starts building a profile from a folder.
func (h *OperationsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Folder == "" {
		respondError(w, http.StatusBadRequest, "name and folder are required")
		return
	}

	h.start(w, "generate", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		p, err := h.service.GenerateProfile(ctx, req.Name, req.Folder, sorter.ReportTo(op))
		if err != nil {
			return nil, err
		}
		return newProfileDetail(p), nil
	})
}

// AutoCreate starts creating profiles from the library folder layout.
func (h *OperationsHandler) AutoCreate(w http.ResponseWriter, r *http.Request) {
	h.start(w, "auto-create", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		return h.service.AutoCreateProfiles(ctx, sorter.ReportTo(op))
	})
}

// Dedup starts removing duplicates inside a namespace.
func (h *OperationsHandler) Dedup(w http.ResponseWriter, r *http.Request) {
	var req DedupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Namespace == "" {
		respondError(w, http.StatusBadRequest, "namespace is required")
		return
	}

	h.start(w, "dedup", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		return h.service.RemoveDuplicates(ctx, req.Namespace, sorter.ReportTo(op))
	})
}

// Current returns the state of the most recent operation.
func (h *OperationsHandler) Current(w http.ResponseWriter, r *http.Request) {
	op := h.supervisor.Current()
	if op == nil {
		respondError(w, http.StatusNotFound, "no operation")
		return
	}
	respondJSON(w, http.StatusOK, op.Snapshot())
}

// Get returns the state of a recent operation.
func (h *OperationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	op, ok := h.supervisor.Get(pathParam(r, "opId"))
	if !ok {
		respondError(w, http.StatusNotFound, "operation not found")
		return
	}
	respondJSON(w, http.StatusOK, op.Snapshot())
}

// Cancel cancels the running operation.
func (h *OperationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	cancelled := h.supervisor.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// Events streams operation events via SSE.
func (h *OperationsHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r, h.supervisor)
}

// Proposals lists the proposals of the last categorization still awaiting approval.
func (h *OperationsHandler) Proposals(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"threshold": h.service.Threshold(),
		"proposals": h.service.Proposals(),
	})
}
