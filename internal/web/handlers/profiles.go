package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/library-sorter/internal/constants"
	"github.com/kozaktomas/library-sorter/internal/profile"
	"github.com/kozaktomas/library-sorter/internal/sorter"
	"github.com/kozaktomas/library-sorter/internal/supervisor"
)

// ProfilesHandler serves profile listings, rebuilds and ranking.
type ProfilesHandler struct {
	service    *sorter.Service
	supervisor *supervisor.Supervisor
}

// NewProfilesHandler creates a new profiles handler
func NewProfilesHandler(svc *sorter.Service, sup *supervisor.Supervisor) *ProfilesHandler {
	return &ProfilesHandler{service: svc, supervisor: sup}
}

// ProfileSummary is the list view of a profile.
type ProfileSummary struct {
	Name         string    `json:"name"`
	Namespace    string    `json:"namespace"`
	Label        string    `json:"label"`
	MemberCount  int       `json:"member_count"`
	HasCentroid  bool      `json:"has_centroid"`
	LastComputed time.Time `json:"last_computed"`
}

// ProfileDetail includes the members of a profile.
type ProfileDetail struct {
	ProfileSummary
	Members []string `json:"members"`
}

func newProfileSummary(p *profile.Profile) ProfileSummary {
	return ProfileSummary{
		Name:         p.Name,
		Namespace:    p.Namespace(),
		Label:        p.Label(),
		MemberCount:  len(p.Members),
		HasCentroid:  p.HasCentroid(),
		LastComputed: p.LastComputed,
	}
}

func newProfileDetail(p *profile.Profile) ProfileDetail {
	members := p.Members
	if members == nil {
		members = []string{}
	}
	return ProfileDetail{ProfileSummary: newProfileSummary(p), Members: members}
}

// List returns all profiles, optionally filtered by the namespace query parameter.
func (h *ProfilesHandler) List(w http.ResponseWriter, r *http.Request) {
	var profiles []*profile.Profile
	if ns := r.URL.Query().Get("namespace"); ns != "" {
		profiles = h.service.Store().Namespace(ns)
	} else {
		profiles = h.service.Store().All()
	}

	out := make([]ProfileSummary, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, newProfileSummary(p))
	}
	respondJSON(w, http.StatusOK, out)
}

// Get returns one profile with its members.
func (h *ProfilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.service.Store().Get(pathParam(r, "name"))
	if !ok {
		respondError(w, http.StatusNotFound, "profile not found")
		return
	}
	respondJSON(w, http.StatusOK, newProfileDetail(p))
}

// Rebuild recomputes a profile from its current members and waits for the result.
func (h *ProfilesHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	if _, ok := h.service.Store().Get(name); !ok {
		respondError(w, http.StatusNotFound, "profile not found")
		return
	}

	log.Printf("Rebuilding profile %s", sanitizeForLog(name))
	res := h.supervisor.Run(r.Context(), "rebuild", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		p, err := h.service.RebuildProfile(ctx, name)
		if err != nil {
			return nil, err
		}
		return newProfileDetail(p), nil
	})
	respondResult(w, res)
}

// Split starts splitting a profile into two halves.
func (h *ProfilesHandler) Split(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	if _, ok := h.service.Store().Get(name); !ok {
		respondError(w, http.StatusNotFound, "profile not found")
		return
	}
	launch(w, h.supervisor, "split", func(ctx context.Context, op *supervisor.Operation) (any, error) {
		return h.service.SplitProfile(ctx, name, sorter.ReportTo(op))
	})
}

// RankRequest asks for the profiles closest to an image.
type RankRequest struct {
	Path      string `json:"path"`
	Namespace string `json:"namespace"`
	Limit     int    `json:"limit"`
}

// RankedProfile is one entry of a ranking.
type RankedProfile struct {
	Profile    string  `json:"profile"`
	Similarity float64 `json:"similarity"`
	Member     bool    `json:"member,omitempty"`
}

// Rank returns the profiles most similar to an image.
func (h *ProfilesHandler) Rank(w http.ResponseWriter, r *http.Request) {
	var req RankRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = constants.DefaultRankLimit
	}

	matches, err := h.service.Rank(r.Context(), req.Path, req.Namespace, req.Limit)
	if err != nil {
		log.Printf("Rank failed for %s: %v", sanitizeForLog(req.Path), err)
		respondError(w, http.StatusUnprocessableEntity, "failed to compute image vector")
		return
	}

	owner, _ := h.service.Store().OwnerOf(req.Path)
	out := make([]RankedProfile, 0, len(matches))
	for _, m := range matches {
		out = append(out, RankedProfile{
			Profile:    m.Profile.Name,
			Similarity: m.Similarity,
			Member:     m.Profile.Name == owner,
		})
	}
	respondJSON(w, http.StatusOK, out)
}
