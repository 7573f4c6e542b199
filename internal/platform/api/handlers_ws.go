package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/flowbridge/engine/internal/platform/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The execution-stream socket carries no credentials of its own
	// (authorization already happened on whatever issued the execution
	// id); same-origin is not assumed since dashboards commonly live on a
	// separate origin from the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleExecutionWS handles GET /ws/execution-stream/{id}: a domain-stack
// addition alongside the spec-mandated SSE endpoint, for dashboards that
// want a persistent duplex socket instead of polling an EventSource.
func (s *Server) handleExecutionWS(w http.ResponseWriter, r *http.Request) {
	if s.Hub == nil {
		s.respondError(w, "websocket hub not configured", http.StatusServiceUnavailable)
		return
	}
	executionID := r.PathValue("id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := ws.NewClient(s.Hub, conn, executionID, s.log)
	client.Serve()
}
