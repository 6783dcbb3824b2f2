package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/library-sorter/internal/database/mock"
	"github.com/kozaktomas/library-sorter/internal/embedding"
	"github.com/kozaktomas/library-sorter/internal/featurecache"
	"github.com/kozaktomas/library-sorter/internal/profile"
	"github.com/kozaktomas/library-sorter/internal/sorter"
	"github.com/kozaktomas/library-sorter/internal/supervisor"
)

// fakeProvider maps file content to a vector.
type fakeProvider struct {
	vectors   map[string][]float32
	healthErr error
	// block, when set, makes every computation wait for it to close or ctx to end
	block chan struct{}
}

func (p *fakeProvider) ComputeVector(ctx context.Context, path string) ([]float32, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embedding.ErrComputeFailed, err)
	}
	vec, ok := p.vectors[string(data)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown content", embedding.ErrComputeFailed)
	}
	return vec, nil
}

func (p *fakeProvider) ComputeVectorsBatch(ctx context.Context, paths []string) ([][]float32, error) {
	out := make([][]float32, len(paths))
	for i, path := range paths {
		vec, err := p.ComputeVector(ctx, path)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (p *fakeProvider) Health(ctx context.Context) (*embedding.HealthStatus, error) {
	if p.healthErr != nil {
		return nil, p.healthErr
	}
	return &embedding.HealthStatus{Status: "ok", EmbedderReady: true, EffectiveDevice: "cpu"}, nil
}

// testEnv is a library on disk with a service and supervisor over it.
type testEnv struct {
	root     string
	provider *fakeProvider
	cache    *mock.MockCacheStore
	svc      *sorter.Service
	sup      *supervisor.Supervisor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		root: t.TempDir(),
		provider: &fakeProvider{vectors: map[string][]float32{
			"red":   {1, 0, 0},
			"red2":  {0.9, 0.3, 0},
			"blue":  {0, 1, 0},
			"blue2": {0.3, 0.9, 0},
		}},
		cache: mock.NewMockCacheStore(),
		sup:   supervisor.New(),
	}
	env.svc = sorter.New(sorter.Options{
		Root:                env.root,
		SourceFolders:       []string{"Mix"},
		SuggestionThreshold: 0.85,
		Workers:             2,
	}, env.provider, featurecache.New(env.cache), profile.NewStore(), mock.NewMockProfileRepository())
	t.Cleanup(func() {
		env.sup.Cancel()
		if op := env.sup.Current(); op != nil {
			op.Wait()
		}
	})
	return env
}

func (env *testEnv) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(env.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// withProfiles lays out Anna/{a1,Beach/b1} and builds profiles from it.
func (env *testEnv) withProfiles(t *testing.T) {
	t.Helper()
	env.write(t, "Anna/a1.jpg", "red")
	env.write(t, "Anna/Beach/b1.jpg", "blue")
	if _, err := env.svc.AutoCreateProfiles(context.Background(), nil); err != nil {
		t.Fatalf("AutoCreateProfiles failed: %v", err)
	}
}

// waitForOperation waits for a started operation to finish and returns its snapshot.
func (env *testEnv) waitForOperation(t *testing.T, id string) supervisor.Snapshot {
	t.Helper()
	op, ok := env.sup.Get(id)
	if !ok {
		t.Fatalf("operation %s not found", id)
	}
	select {
	case <-op.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("operation %s did not finish", id)
	}
	return op.Snapshot()
}

// jsonRequest creates a request with a JSON body
func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
