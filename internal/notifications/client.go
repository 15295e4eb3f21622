package notifications

import (
	"bytes"
	"log/slog"
	"sync"
	"time"

	"artenis/internal/middleware"
	"artenis/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 512
	sendBuffer     = 256
)

var (
	dropNotice = []byte(`{"type":"notifications.dropped","payload":{"reason":"buffer_full"}}`)
	pongFrame  = []byte(`{"type":"pong"}`)
	pingText   = []byte(`{"type":"ping"}`)
)

// Conn is the subset of a websocket connection the pumps use.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// WSHub is what a client reports back to.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client is one websocket connection of a user. Notifications only flow
// server to client; the only inbound frame answered is an application-level
// {"type":"ping"} for browsers that cannot see protocol pings.
type Client struct {
	Hub    WSHub
	Conn   Conn
	UserID uint
	// Send is closed by the hub when the client is unregistered.
	Send chan []byte

	mu     sync.RWMutex
	closed bool
}

// NewClient wraps conn for userID.
func NewClient(hub WSHub, conn Conn, userID uint) *Client {
	return &Client{Hub: hub, Conn: conn, UserID: userID, Send: make(chan []byte, sendBuffer)}
}

// Serve runs the connection until either side goes away. It blocks, so the
// websocket handler calls it last.
func (c *Client) Serve() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop()
	}()
	c.readLoop()
	c.Hub.UnregisterClient(c)
	<-done
}

func (c *Client) readLoop() {
	c.Conn.SetReadLimit(maxInboundSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				middleware.Logger.Debug("websocket closed unexpectedly",
					slog.Uint64("user_id", uint64(c.UserID)), slog.String("error", err.Error()))
			}
			return
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		if bytes.Equal(bytes.TrimSpace(msg), pingText) {
			c.TrySend(pongFrame)
		}
	}
}

// writeLoop owns every write to the connection and closes it on exit.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		var (
			kind = websocket.PingMessage
			data []byte
		)
		select {
		case msg, ok := <-c.Send:
			if !ok {
				_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "closing"))
				return
			}
			kind, data = websocket.TextMessage, msg
		case <-ticker.C:
		}

		_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}

// TrySend queues msg without blocking. On a full buffer msg is dropped and
// a single notice tells the client to re-fetch.
func (c *Client) TrySend(msg []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "closed").Inc()
		return
	}

	select {
	case c.Send <- msg:
		return
	default:
	}
	observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "full").Inc()
	middleware.Logger.Warn("websocket buffer full",
		slog.Uint64("user_id", uint64(c.UserID)), slog.String("hub", c.Hub.Name()))
	select {
	case c.Send <- dropNotice:
	default:
	}
}

// closeSend closes Send once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}
