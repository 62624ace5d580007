package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 512
	defaultSendBuffer     = 64
)

// Client is one authenticated websocket session.
type Client struct {
	ID     string
	UserID string
	Role   string

	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, userID, role string, buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		conn:   conn,
		send:   make(chan []byte, buffer),
	}
}

// enqueue queues a frame without blocking. A full buffer means the client is
// too slow and the frame is dropped for this connection only.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump keeps the read side alive so control frames are processed. It
// unregisters the client when the peer goes away or stops answering pings.
func (c *Client) readPump(g *Gateway) {
	defer func() {
		g.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(g.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(g.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(g.opts.PongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				g.logReadError(c, err)
			}
			return
		}
	}
}

// writePump is the only writer on the connection. It exits when the send
// channel is closed or a write fails.
func (c *Client) writePump(g *Gateway) {
	ticker := time.NewTicker(g.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(g.opts.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				g.logWriteError(c, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(g.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
