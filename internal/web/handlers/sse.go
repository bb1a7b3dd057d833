package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/attendance/internal/attendance"
)

// SSESource is the interface required by streamSSEEvents.
type SSESource interface {
	AddListener() chan SessionEvent
	RemoveListener(ch chan SessionEvent)
	GetState() attendance.State
}

// setupSSEConnection validates the request, finds the session, and sets up SSE headers.
// On failure it writes an error response and returns false.
func setupSSEConnection(w http.ResponseWriter, r *http.Request, lookup func(string) SSESource) (SSESource, http.Flusher, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing session ID")
		return nil, nil, false
	}

	src := lookup(id)
	if src == nil {
		respondError(w, http.StatusNotFound, errSessionNotFound)
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

	return src, flusher, true
}

// streamSSEEvents streams session events until the closing event has been
// sent, the client disconnects, or the listener is closed.
func streamSSEEvents(w http.ResponseWriter, r *http.Request, lookup func(string) SSESource, initial func(SSESource) any) {
	src, flusher, ok := setupSSEConnection(w, r, lookup)
	if !ok {
		return
	}

	eventCh := src.AddListener()
	defer src.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", initial(src))
	if src.GetState().Terminal() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
			if event.State.Terminal() {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
