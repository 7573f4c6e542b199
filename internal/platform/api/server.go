// Package api implements the REST surface (spec §6's "wire bindings"),
// grounded on the teacher's internal/infrastructure/api/rest/server.go:
// the same http.ServeMux + method-pattern routing, Server{store, mux,
// logger} shape, and respondJSON/respondError response helpers, extended
// with the workflow-run, SSE execution-stream, and webhook trigger
// endpoints this spec calls for.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/flowbridge/engine/internal/platform/ws"
	"github.com/flowbridge/engine/internal/recorder"
	"github.com/flowbridge/engine/internal/registry"
	"github.com/flowbridge/engine/internal/scheduler"
	"github.com/flowbridge/engine/internal/store"
	"github.com/flowbridge/engine/internal/validate"
)

// Server wires the engine's core components to HTTP. It holds no
// execution-scoped state itself — every request-scoped value lives on the
// domain.ExecutionContext the scheduler builds per run.
type Server struct {
	Store         store.Store
	Registry      *registry.Registry
	Validator     *validate.Validator
	Scheduler     *scheduler.Scheduler
	Recorder      *recorder.Recorder
	Hub           *ws.Hub // optional: enables GET /ws/execution-stream/{id}
	WebhookSecret string
	JWTSigningKey string

	mux *http.ServeMux
	log zerolog.Logger
}

func NewServer(st store.Store, reg *registry.Registry, val *validate.Validator, sched *scheduler.Scheduler, rec *recorder.Recorder, hub *ws.Hub, webhookSecret, jwtSigningKey string, log zerolog.Logger) *Server {
	s := &Server{
		Store:         st,
		Registry:      reg,
		Validator:     val,
		Scheduler:     sched,
		Recorder:      rec,
		Hub:           hub,
		WebhookSecret: webhookSecret,
		JWTSigningKey: jwtSigningKey,
		mux:           http.NewServeMux(),
		log:           log.With().Str("component", "api.server").Logger(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	s.mux.HandleFunc("POST /api/workflows", requireAuth(s.JWTSigningKey, s.handleCreateWorkflow))
	s.mux.HandleFunc("GET /api/workflows/{id}", s.handleGetWorkflow)
	s.mux.HandleFunc("DELETE /api/workflows/{id}", requireAuth(s.JWTSigningKey, s.handleDeleteWorkflow))
	s.mux.HandleFunc("POST /api/workflows/{id}/run", s.handleRunWorkflow)
	s.mux.HandleFunc("POST /api/workflows/run-adhoc", s.handleRunAdhoc)

	s.mux.HandleFunc("GET /api/executions/{id}", s.handleGetExecution)
	s.mux.HandleFunc("GET /api/executions", s.handleListExecutions)
	s.mux.HandleFunc("POST /api/executions/{id}/cancel", s.handleCancelExecution)

	s.mux.HandleFunc("GET /execution-stream/{id}", s.handleExecutionStream)
	s.mux.HandleFunc("GET /ws/execution-stream/{id}", s.handleExecutionWS)

	s.mux.HandleFunc("POST /webhook/{workflowId}", s.handleWebhook)
	s.mux.HandleFunc("GET /webhook/{workflowId}", s.handleWebhook)
	s.mux.HandleFunc("PUT /webhook/{workflowId}", s.handleWebhook)
	s.mux.HandleFunc("DELETE /webhook/{workflowId}", s.handleWebhook)

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.log.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("request received")
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) respondJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, message string, status int) {
	s.respondJSON(w, map[string]string{"error": message}, status)
}
