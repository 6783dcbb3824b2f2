package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/library-sorter/internal/embedding"
	"github.com/kozaktomas/library-sorter/internal/sorter"
	"github.com/kozaktomas/library-sorter/internal/supervisor"
)

func TestProfilesHandler_List(t *testing.T) {
	env := newTestEnv(t)
	env.withProfiles(t)
	env.write(t, "Bob/b.jpg", "blue2")
	h := NewProfilesHandler(env.svc, env.sup)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all", "", []string{"Anna - Beach", "Anna - General"}},
		{"namespace", "?namespace=anna", []string{"Anna - Beach", "Anna - General"}},
		{"unknown namespace", "?namespace=Carl", []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/profiles"+tc.query, nil))
			assertStatusCode(t, recorder, http.StatusOK)

			var got []ProfileSummary
			parseJSONResponse(t, recorder, &got)
			names := make([]string, 0, len(got))
			for _, p := range got {
				names = append(names, p.Name)
			}
			if fmt.Sprint(names) != fmt.Sprint(tc.want) {
				t.Errorf("expected %v, got %v", tc.want, names)
			}
		})
	}
}

func TestProfilesHandler_Get(t *testing.T) {
	env := newTestEnv(t)
	env.withProfiles(t)
	h := NewProfilesHandler(env.svc, env.sup)

	recorder := httptest.NewRecorder()
	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"name": "Anna%20-%20Beach"})
	h.Get(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	var detail ProfileDetail
	parseJSONResponse(t, recorder, &detail)
	if detail.Namespace != "Anna" || detail.Label != "Beach" {
		t.Errorf("unexpected namespace/label %q/%q", detail.Namespace, detail.Label)
	}
	if !detail.HasCentroid || detail.MemberCount != 1 || len(detail.Members) != 1 {
		t.Errorf("unexpected detail %+v", detail)
	}

	recorder = httptest.NewRecorder()
	req = requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"name": "Nobody - General"})
	h.Get(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "profile not found")
}

func TestProfilesHandler_Rebuild(t *testing.T) {
	env := newTestEnv(t)
	env.withProfiles(t)
	h := NewProfilesHandler(env.svc, env.sup)

	p, _ := env.svc.Store().Get("Anna - Beach")
	if err := os.Remove(p.Members[0]); err != nil {
		t.Fatal(err)
	}

	recorder := httptest.NewRecorder()
	req := requestWithChiParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"name": "Anna - Beach"})
	h.Rebuild(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	var detail ProfileDetail
	parseJSONResponse(t, recorder, &detail)
	if detail.MemberCount != 0 || len(detail.Members) != 0 {
		t.Errorf("expected missing member to be dropped, got %+v", detail)
	}

	recorder = httptest.NewRecorder()
	req = requestWithChiParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"name": "Nobody - General"})
	h.Rebuild(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestProfilesHandler_Rank(t *testing.T) {
	env := newTestEnv(t)
	env.withProfiles(t)
	query := env.write(t, "Anna/Mix/q.jpg", "blue2")
	h := NewProfilesHandler(env.svc, env.sup)

	recorder := httptest.NewRecorder()
	h.Rank(recorder, jsonRequest(http.MethodPost, "/api/v1/profiles/rank", `{"path":"`+query+`","namespace":"Anna","limit":1}`))
	assertStatusCode(t, recorder, http.StatusOK)

	var ranked []RankedProfile
	parseJSONResponse(t, recorder, &ranked)
	if len(ranked) != 1 || ranked[0].Profile != "Anna - Beach" {
		t.Fatalf("expected Anna - Beach first, got %+v", ranked)
	}
	if ranked[0].Similarity < 0.9 {
		t.Errorf("expected high similarity, got %f", ranked[0].Similarity)
	}
	if ranked[0].Member {
		t.Error("expected an unsorted image not to be a member")
	}

	recorder = httptest.NewRecorder()
	member := filepath.Join(env.root, "Anna", "Beach", "b1.jpg")
	h.Rank(recorder, jsonRequest(http.MethodPost, "/api/v1/profiles/rank", `{"path":"`+member+`","namespace":"Anna","limit":2}`))
	assertStatusCode(t, recorder, http.StatusOK)
	ranked = nil
	parseJSONResponse(t, recorder, &ranked)
	if len(ranked) != 2 || ranked[0].Profile != "Anna - Beach" || !ranked[0].Member || ranked[1].Member {
		t.Errorf("expected only Anna - Beach flagged as the owner, got %+v", ranked)
	}

	recorder = httptest.NewRecorder()
	h.Rank(recorder, jsonRequest(http.MethodPost, "/api/v1/profiles/rank", `{}`))
	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "path is required")

	recorder = httptest.NewRecorder()
	h.Rank(recorder, jsonRequest(http.MethodPost, "/api/v1/profiles/rank", `{"path":"/does/not/exist.jpg"}`))
	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
}

func TestProfilesHandler_Split(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "Anna/Beach/b1.jpg", "blue")
	env.write(t, "Anna/Beach/b2.jpg", "blue2")
	if _, err := env.svc.AutoCreateProfiles(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	h := NewProfilesHandler(env.svc, env.sup)

	recorder := httptest.NewRecorder()
	req := requestWithChiParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"name": "Anna%20-%20Beach"})
	h.Split(recorder, req)
	assertStatusCode(t, recorder, http.StatusAccepted)

	var started startResponse
	parseJSONResponse(t, recorder, &started)
	snap := env.waitForOperation(t, started.OperationID)
	if snap.Status != supervisor.StatusSucceeded {
		t.Fatalf("expected split to succeed, got %s (%+v)", snap.Status, snap.Result)
	}
	result, ok := snap.Result.Value.(*sorter.SplitResult)
	if !ok || result.Moved != 2 || len(result.Parts) != 2 {
		t.Fatalf("unexpected result %+v", snap.Result.Value)
	}
	for _, rel := range []string{"Anna/Beach/Part 1/b1.jpg", "Anna/Beach/Part 2/b2.jpg"} {
		if _, err := os.Stat(filepath.Join(env.root, rel)); err != nil {
			t.Errorf("expected %s: %v", rel, err)
		}
	}

	recorder = httptest.NewRecorder()
	req = requestWithChiParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"name": "Anna - Beach"})
	h.Split(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "profile not found")
}

func TestSystemHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		healthErr  error
		wantStatus int
	}{
		{"ready", nil, http.StatusOK},
		{"unavailable", fmt.Errorf("%w: connection refused", embedding.ErrProviderUnavailable), http.StatusServiceUnavailable},
		{"other error", errors.New("bad response"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.provider.healthErr = tc.healthErr
			h := NewSystemHandler(env.svc, env.sup)

			recorder := httptest.NewRecorder()
			h.Health(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
			assertStatusCode(t, recorder, tc.wantStatus)
			assertContentType(t, recorder, "application/json")

			var body map[string]any
			parseJSONResponse(t, recorder, &body)
			if tc.healthErr == nil {
				if body["embedder_fully_initialized"] != true {
					t.Errorf("expected embedder ready, got %v", body)
				}
			} else if body["status"] != "unavailable" {
				t.Errorf("expected unavailable status, got %v", body["status"])
			}
		})
	}
}

func TestSystemHandler_Cache(t *testing.T) {
	env := newTestEnv(t)
	env.withProfiles(t)
	h := NewSystemHandler(env.svc, env.sup)

	recorder := httptest.NewRecorder()
	h.CacheStats(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/cache", nil))
	assertStatusCode(t, recorder, http.StatusOK)
	var stats map[string]int
	parseJSONResponse(t, recorder, &stats)
	if stats["entries"] != 2 {
		t.Errorf("expected 2 cached vectors, got %d", stats["entries"])
	}

	recorder = httptest.NewRecorder()
	h.ClearCache(recorder, httptest.NewRequest(http.MethodDelete, "/api/v1/cache", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	if n, _ := env.cache.Count(t.Context()); n != 0 {
		t.Errorf("expected empty cache, got %d entries", n)
	}
}
