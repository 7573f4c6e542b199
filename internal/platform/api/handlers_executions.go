package api

import (
	"net/http"
)

// handleGetExecution handles GET /api/executions/{id}.
func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	if s.Recorder == nil {
		s.respondError(w, "recorder not configured", http.StatusServiceUnavailable)
		return
	}
	id := r.PathValue("id")
	rec, ok := s.Recorder.Get(id)
	if !ok {
		s.respondError(w, "execution not found", http.StatusNotFound)
		return
	}
	s.respondJSON(w, rec, http.StatusOK)
}

// handleListExecutions handles GET /api/executions?workflowId=....
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	if s.Recorder == nil {
		s.respondError(w, "recorder not configured", http.StatusServiceUnavailable)
		return
	}
	s.respondJSON(w, s.Recorder.List(r.URL.Query().Get("workflowId")), http.StatusOK)
}

// handleCancelExecution handles POST /api/executions/{id}/cancel.
func (s *Server) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.Scheduler.Cancel(id) {
		s.respondError(w, "execution not found or already finished", http.StatusNotFound)
		return
	}
	s.respondJSON(w, map[string]string{"executionId": id, "status": "cancelling"}, http.StatusAccepted)
}
