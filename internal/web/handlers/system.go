package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/kozaktomas/library-sorter/internal/embedding"
	"github.com/kozaktomas/library-sorter/internal/sorter"
	"github.com/kozaktomas/library-sorter/internal/supervisor"
)

// SystemHandler serves health and cache endpoints.
type SystemHandler struct {
	service    *sorter.Service
	supervisor *supervisor.Supervisor
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(svc *sorter.Service, sup *supervisor.Supervisor) *SystemHandler {
	return &SystemHandler{service: svc, supervisor: sup}
}

// Health reports the embedding server status.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Health(r.Context())
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, embedding.ErrProviderUnavailable) {
			code = http.StatusServiceUnavailable
		}
		respondJSON(w, code, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// CacheStats returns the number of cached vectors.
func (h *SystemHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.CacheStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read cache")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"entries": n})
}

// ClearCache removes every cached vector. It runs as a supervised operation
// so it never overlaps a scan.
func (h *SystemHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	res := h.supervisor.Run(r.Context(), "cache-clear", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		if err := h.service.ClearCache(ctx); err != nil {
			return nil, err
		}
		return map[string]bool{"cleared": true}, nil
	})
	respondResult(w, res)
}
