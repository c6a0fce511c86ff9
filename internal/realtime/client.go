package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deskhand/deskhand/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

var (
	ErrClientSendBufferFull = errors.New("client send buffer full")
	ErrClientClosed         = errors.New("client connection closed")
)

// Client is one connected context (a popup or a content script).
type Client struct {
	// ID doubles as the tab identifier for content contexts so broadcasts
	// can skip the reporting tab.
	ID string

	conn *websocket.Conn
	hub  *Hub
	out  chan []byte

	closed   bool
	closedMu sync.Mutex
}

// NewClient wraps an accepted websocket connection and registers it with the
// hub. The caller owns the connection until Run is called.
func NewClient(conn *websocket.Conn, hub *Hub, id string) *Client {
	return &Client{
		ID:   id,
		conn: conn,
		hub:  hub,
		out:  make(chan []byte, 64),
	}
}

// Run registers the client and blocks pumping the connection until it drops.
func (c *Client) Run() {
	c.hub.register <- c
	go c.writePump()
	c.readPump()
}

// send queues a frame without blocking. The hub treats a full buffer as a
// slow client and moves on.
func (c *Client) send(payload []byte) error {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.out <- payload:
		return nil
	default:
		return ErrClientSendBufferFull
	}
}

func (c *Client) close() {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}

// readPump discards inbound frames (contexts talk to the daemon over HTTP)
// and watches for disconnect.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debugf("realtime: read error for %s: %v", c.ID, err)
			}
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
		case payload, ok := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
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
