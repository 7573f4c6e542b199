package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/flowbridge/engine/internal/recorder"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Client is one subscribed WebSocket connection, pinned to a single
// execution id for the lifetime of the socket.
type Client struct {
	conn        *websocket.Conn
	hub         *Hub
	executionID string
	send        chan recorder.Event
	log         zerolog.Logger
}

// NewClient wires a fresh connection into the hub's registration channel.
func NewClient(hub *Hub, conn *websocket.Conn, executionID string, log zerolog.Logger) *Client {
	c := &Client{
		conn:        conn,
		hub:         hub,
		executionID: executionID,
		send:        make(chan recorder.Event, 32),
		log:         log.With().Str("execution_id", executionID).Logger(),
	}
	hub.Register(c)
	return c
}

// Serve blocks running the client's write pump and a no-op read pump (used
// only to detect client disconnects and pongs); returns once the
// connection closes.
func (c *Client) Serve() {
	go c.readPump()
	c.writePump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				c.log.Error().Err(err).Msg("failed to marshal event")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
