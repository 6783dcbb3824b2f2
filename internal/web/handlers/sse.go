package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/kozaktomas/library-sorter/internal/supervisor"
)

// sendSSEEvent writes a single server-sent event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

// isTerminalEvent returns true if the event ends an operation
func isTerminalEvent(eventType string) bool {
	return eventType == supervisor.EventCompleted || eventType == supervisor.EventFailed || eventType == supervisor.EventCancelled
}

// setupSSEConnection validates the request, finds the operation, and sets up SSE headers.
// On failure it writes an error response and returns false.
func setupSSEConnection(w http.ResponseWriter, r *http.Request, sup *supervisor.Supervisor) (*supervisor.Operation, http.Flusher, bool) {
	opID := pathParam(r, "opId")
	if opID == "" {
		respondError(w, http.StatusBadRequest, "missing operation ID")
		return nil, nil, false
	}

	op, ok := sup.Get(opID)
	if !ok {
		respondError(w, http.StatusNotFound, "operation not found")
		return nil, nil, false
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return op, flusher, true
}

// streamSSEEvents streams events of an operation until it finishes, the
// client disconnects, or the event channel closes.
func streamSSEEvents(w http.ResponseWriter, r *http.Request, sup *supervisor.Supervisor) {
	op, flusher, ok := setupSSEConnection(w, r, sup)
	if !ok {
		return
	}

	eventCh := op.AddListener()
	defer op.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", op.Snapshot())
	if op.GetStatus().Terminal() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-op.Done():
			// Drain what was sent before the operation finished
			for {
				select {
				case event := <-eventCh:
					sendSSEEvent(w, flusher, event.Type, event)
				default:
					return
				}
			}
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
			if isTerminalEvent(event.Type) {
				return
			}
		}
	}
}
