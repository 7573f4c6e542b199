package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/store"
)

// handleListWorkflows handles GET /api/workflows.
func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	list, err := s.Store.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list workflows")
		s.respondError(w, "failed to list workflows", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, list, http.StatusOK)
}

// handleCreateWorkflow handles POST /api/workflows: body is a full Workflow
// (id assigned if empty), validated before it is persisted.
func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf domain.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		s.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	now := time.Now()
	wf.CreatedAt, wf.UpdatedAt = now, now

	report := s.Validator.Validate(&wf)
	if !report.Valid {
		s.respondJSON(w, map[string]any{"error": "validation failed", "errors": report.Errors, "warnings": report.Warnings}, http.StatusBadRequest)
		return
	}

	if err := s.Store.Save(r.Context(), &wf); err != nil {
		s.log.Error().Err(err).Msg("failed to save workflow")
		s.respondError(w, "failed to save workflow", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, wf, http.StatusCreated)
}

// handleGetWorkflow handles GET /api/workflows/{id}.
func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	wf, err := s.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, "workflow not found", http.StatusNotFound)
			return
		}
		s.respondError(w, "failed to get workflow", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, wf, http.StatusOK)
}

// handleDeleteWorkflow handles DELETE /api/workflows/{id}.
func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, "workflow not found", http.StatusNotFound)
			return
		}
		s.respondError(w, "failed to delete workflow", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// runRequest is POST /api/workflows/{id}/run's body.
type runRequest struct {
	InputData []map[string]any `json:"input_data,omitempty"`
}

// executionResponse is what both run endpoints hand back immediately — the
// run itself proceeds asynchronously (spec §6).
type executionResponse struct {
	ExecutionID string `json:"executionId"`
	WorkflowID  string `json:"workflowId"`
	Status      string `json:"status"`
}

// handleRunWorkflow handles POST /api/workflows/{id}/run.
func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	wf, err := s.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, "workflow not found", http.StatusNotFound)
			return
		}
		s.respondError(w, "failed to get workflow", http.StatusInternalServerError)
		return
	}

	var req runRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	s.startRun(w, r, wf, req.InputData, domain.ModeManual)
}

// handleRunAdhoc handles POST /api/workflows/run-adhoc: body is a full
// Workflow definition, executed without ever touching the store.
func (s *Server) handleRunAdhoc(w http.ResponseWriter, r *http.Request) {
	var wf domain.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		s.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	s.startRun(w, r, &wf, nil, domain.ModeManual)
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request, wf *domain.Workflow, inputData []map[string]any, mode domain.Mode) {
	report := s.Validator.Validate(wf)
	if !report.Valid {
		s.respondJSON(w, map[string]any{"error": "validation failed", "errors": report.Errors, "warnings": report.Warnings}, http.StatusBadRequest)
		return
	}

	startNode := s.Scheduler.FindStartNode(wf)
	if startNode == nil {
		s.respondError(w, "workflow has no trigger node", http.StatusBadRequest)
		return
	}

	items := make([]domain.Item, len(inputData))
	for i, d := range inputData {
		items[i] = domain.Item{JSON: d}
	}

	executionID := s.Scheduler.RunAsync(context.WithoutCancel(r.Context()), wf, startNode.Name, items, mode,
		func(executionID string) {
			if s.Recorder != nil {
				s.Recorder.Start(executionID, wf.ID, wf.Name, mode, time.Now().Unix())
			}
		},
		func(ec *domain.ExecutionContext, _ error) {
			if s.Recorder != nil {
				s.Recorder.Complete(ec)
			}
		})

	s.respondJSON(w, executionResponse{ExecutionID: executionID, WorkflowID: wf.ID, Status: string(domain.StatusRunning)}, http.StatusAccepted)
}
