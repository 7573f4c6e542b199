package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/flowbridge/engine/internal/recorder"
)

// handleExecutionStream handles GET /execution-stream/{id} (spec §6): a
// Server-Sent-Events feed of the recorder's event stream, filtered to one
// execution id. Delivery is best-effort — a client that can't keep up
// misses events rather than stalling the recorder (recorder.Subscribe's
// contract).
func (s *Server) handleExecutionStream(w http.ResponseWriter, r *http.Request) {
	if s.Recorder == nil {
		s.respondError(w, "recorder not configured", http.StatusServiceUnavailable)
		return
	}
	executionID := r.PathValue("id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, unsubscribe := s.Recorder.Subscribe()
	defer unsubscribe()

	// Replay the terminal state immediately if the execution already
	// finished before the client connected, then close.
	if rec, ok := s.Recorder.Get(executionID); ok && rec.Status != "running" {
		writeSSE(w, recorder.EventExecutionComplete, rec)
		flusher.Flush()
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.ExecutionID != executionID {
				continue
			}
			writeSSE(w, ev.Type, ev)
			flusher.Flush()
			if ev.Type == recorder.EventExecutionComplete {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, eventType recorder.EventType, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
}
