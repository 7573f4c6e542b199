package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/store"
)

// handleWebhook handles POST|GET|PUT|DELETE /webhook/{workflowId} (spec §6):
// 404 if the workflow doesn't exist, 400 if it isn't active, otherwise
// starts a webhook-mode run seeded with one item carrying the request's
// body/headers/query/method.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("workflowId")

	if s.WebhookSecret != "" && !validBearer(r, s.WebhookSecret) {
		s.respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	wf, err := s.Store.Get(r.Context(), workflowID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, "workflow not found", http.StatusNotFound)
			return
		}
		s.respondError(w, "failed to get workflow", http.StatusInternalServerError)
		return
	}
	if !wf.Active {
		s.respondError(w, "workflow is not active", http.StatusBadRequest)
		return
	}

	report := s.Validator.Validate(wf)
	if !report.Valid {
		s.respondJSON(w, map[string]any{"error": "validation failed", "errors": report.Errors}, http.StatusBadRequest)
		return
	}

	startNode := webhookNodeOf(wf)
	if startNode == nil {
		startNode = s.Scheduler.FindStartNode(wf)
	}
	if startNode == nil {
		s.respondError(w, "workflow has no trigger node", http.StatusBadRequest)
		return
	}

	var body any
	raw, _ := io.ReadAll(r.Body)
	if len(raw) > 0 {
		if jsonErr := json.Unmarshal(raw, &body); jsonErr != nil {
			body = string(raw)
		}
	}
	headers := make(map[string]any, len(r.Header))
	for k, v := range r.Header {
		headers[k] = strings.Join(v, ", ")
	}
	query := make(map[string]any, len(r.URL.Query()))
	for k, v := range r.URL.Query() {
		if len(v) == 1 {
			query[k] = v[0]
		} else {
			query[k] = v
		}
	}

	item := domain.Item{JSON: map[string]any{
		"body":    body,
		"headers": headers,
		"query":   query,
		"method":  r.Method,
	}}

	executionID := s.Scheduler.RunAsync(context.WithoutCancel(r.Context()), wf, startNode.Name, []domain.Item{item}, domain.ModeWebhook,
		func(executionID string) {
			if s.Recorder != nil {
				s.Recorder.Start(executionID, wf.ID, wf.Name, domain.ModeWebhook, time.Now().Unix())
			}
		},
		func(ec *domain.ExecutionContext, _ error) {
			if s.Recorder != nil {
				s.Recorder.Complete(ec)
			}
		})

	s.respondJSON(w, executionResponse{ExecutionID: executionID, WorkflowID: wf.ID, Status: string(domain.StatusRunning)}, http.StatusAccepted)
}

func webhookNodeOf(wf *domain.Workflow) *domain.NodeDefinition {
	for i := range wf.Nodes {
		if wf.Nodes[i].Type == domain.NodeTypeWebhook {
			return &wf.Nodes[i]
		}
	}
	return nil
}

func validBearer(r *http.Request, secret string) bool {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return false
	}
	return strings.TrimPrefix(auth, prefix) == secret
}
