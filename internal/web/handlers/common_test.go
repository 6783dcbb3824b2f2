package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/library-sorter/internal/supervisor"
)

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		data       any
		wantBody   string
	}{
		{"object", http.StatusOK, map[string]int{"entries": 3}, `{"entries":3}`},
		{"array", http.StatusAccepted, []string{"a", "b"}, `["a","b"]`},
		{"nil data", http.StatusNotFound, nil, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.statusCode, tc.data)

			assertStatusCode(t, recorder, tc.statusCode)
			assertContentType(t, recorder, "application/json")
			if got := strings.TrimSpace(recorder.Body.String()); got != tc.wantBody {
				t.Errorf("expected body %q, got %q", tc.wantBody, got)
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondError(recorder, http.StatusBadRequest, "namespace is required")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "namespace is required")
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantOK bool
		wantNS string
	}{
		{"valid", `{"namespace":"Anna"}`, true, "Anna"},
		{"empty body", ``, true, ""},
		{"malformed", `{"namespace":`, false, ""},
		{"wrong type", `{"namespace":5}`, false, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))

			var v DedupRequest
			ok := decodeJSON(recorder, req, &v)
			if ok != tc.wantOK {
				t.Fatalf("expected ok=%v, got %v", tc.wantOK, ok)
			}
			if !ok {
				assertStatusCode(t, recorder, http.StatusBadRequest)
				assertJSONError(t, recorder, errInvalidRequestBody)
				return
			}
			if v.Namespace != tc.wantNS {
				t.Errorf("expected namespace %q, got %q", tc.wantNS, v.Namespace)
			}
		})
	}
}

func TestPathParam_Unescapes(t *testing.T) {
	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/", nil),
		map[string]string{"name": "Anna%20-%20Beach", "bad": "%zz"},
	)

	if got := pathParam(req, "name"); got != "Anna - Beach" {
		t.Errorf("expected unescaped name, got %q", got)
	}
	if got := pathParam(req, "bad"); got != "%zz" {
		t.Errorf("expected raw value for invalid escape, got %q", got)
	}
}

func TestRespondResult(t *testing.T) {
	tests := []struct {
		name       string
		result     supervisor.Result
		wantStatus int
		wantError  string
	}{
		{"succeeded", supervisor.Result{Outcome: supervisor.Succeeded, Value: map[string]bool{"cleared": true}}, http.StatusOK, ""},
		{"cancelled", supervisor.Result{Outcome: supervisor.Cancelled, Error: "context canceled"}, http.StatusConflict, "operation cancelled"},
		{"failed", supervisor.Result{Outcome: supervisor.Failed, Error: "boom"}, http.StatusInternalServerError, "boom"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondResult(recorder, tc.result)

			assertStatusCode(t, recorder, tc.wantStatus)
			if tc.wantError != "" {
				assertJSONError(t, recorder, tc.wantError)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("a\r\nb\nc"); got != "abc" {
		t.Errorf("expected newlines stripped, got %q", got)
	}
}
