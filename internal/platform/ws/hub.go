// Package ws adapts the execution recorder's event stream to live
// WebSocket subscribers (spec C10's "/ws/execution-stream/{id}" surface),
// grounded on the teacher's internal/infrastructure/websocket/hub.go
// register/unregister/broadcast channel loop and per-client subscription
// indexes — simplified to drop the teacher's per-user routing (this engine
// has no multi-tenant user concept) in favor of subscribing by execution id
// only, and re-targeted to carry recorder.Event instead of the teacher's
// WSEvent.
package ws

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/flowbridge/engine/internal/recorder"
)

type broadcastMsg struct {
	executionID string
	event       recorder.Event
}

// Hub owns the set of connected clients and fans recorder events out to the
// ones subscribed to the relevant execution.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg

	byExecutionID map[string]map[*Client]bool

	log zerolog.Logger
	mu  sync.RWMutex
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		broadcast:     make(chan broadcastMsg, 256),
		byExecutionID: make(map[string]map[*Client]bool),
		log:           log.With().Str("component", "ws.hub").Logger(),
	}
}

// Run drives the hub's event loop. Call it in a goroutine; it never
// returns on its own.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.registerClient(c)
		case c := <-h.unregister:
			h.unregisterClient(c)
		case msg := <-h.broadcast:
			h.broadcastEvent(msg)
		}
	}
}

// Pump subscribes the hub to a recorder for as long as done isn't closed,
// translating every recorder event into a hub broadcast.
func (h *Hub) Pump(rec *recorder.Recorder, done <-chan struct{}) {
	events, unsubscribe := rec.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.broadcast <- broadcastMsg{executionID: ev.ExecutionID, event: ev}
		}
	}
}

func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	if c.executionID != "" {
		if h.byExecutionID[c.executionID] == nil {
			h.byExecutionID[c.executionID] = make(map[*Client]bool)
		}
		h.byExecutionID[c.executionID][c] = true
	}
	h.log.Debug().Str("execution_id", c.executionID).Int("clients", len(h.clients)).Msg("client registered")
}

func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	if clients, ok := h.byExecutionID[c.executionID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.byExecutionID, c.executionID)
		}
	}
	h.log.Debug().Str("execution_id", c.executionID).Int("clients", len(h.clients)).Msg("client unregistered")
}

func (h *Hub) broadcastEvent(msg broadcastMsg) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients, ok := h.byExecutionID[msg.executionID]
	if !ok {
		return
	}
	for c := range clients {
		select {
		case c.send <- msg.event:
		default:
			h.log.Warn().Str("execution_id", msg.executionID).Msg("client buffer full, dropping event")
		}
	}
}

// Register and Unregister expose the channels for Client's read/write pumps.
func (h *Hub) Register(c *Client)   { h.register <- c }
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
