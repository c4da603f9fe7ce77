package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/clawlite/pkg/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendBuf  = 64
)

// Client wraps a single WebSocket connection. Writes go through a single
// goroutine (outbox) since gorilla/websocket connections aren't safe for
// concurrent writers.
type Client struct {
	id   string
	conn *websocket.Conn

	outbox chan protocol.EventFrame
	done   chan struct{}
	once   sync.Once
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		outbox: make(chan protocol.EventFrame, clientSendBuf),
		done:   make(chan struct{}),
	}
}

// SendEvent enqueues an event for delivery. Drops the event rather than
// blocking if the client's outbox is full — a slow reader shouldn't stall
// the whole broadcast.
func (c *Client) SendEvent(event protocol.EventFrame) {
	select {
	case c.outbox <- event:
	case <-c.done:
	default:
		slog.Warn("gateway: client outbox full, dropping event", "client", c.id, "event", event.Type)
	}
}

// Run pumps reads (discarded — this is a push-only stream, but reads are
// still needed to process control frames and detect disconnects) and
// writes (outbox -> conn) until the context is cancelled or the connection
// closes.
func (c *Client) Run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer c.Close()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-c.outbox:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close shuts down the client's connection and pumps. Safe to call more
// than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
