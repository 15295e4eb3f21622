package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"artenis/internal/middleware"
)

const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
)

// Hub tracks the open notification sockets of every user. A user may be
// connected from several devices at once.
type Hub struct {
	mu      sync.RWMutex
	byUser  map[uint]map[*Client]struct{}
	total   int
	perUser int
	limit   int
}

// NewHub returns an empty hub with the default connection limits.
func NewHub() *Hub {
	return &Hub{
		byUser:  make(map[uint]map[*Client]struct{}),
		perUser: maxConnsPerUser,
		limit:   maxTotalConns,
	}
}

// Name labels the hub in metrics and logs.
func (h *Hub) Name() string { return "notifications" }

// Register adds a connection for userID, refusing it once either the user's
// or the server's limit is reached.
func (h *Hub) Register(userID uint, conn Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.total >= h.limit:
		return nil, ErrServerFull
	case len(h.byUser[userID]) >= h.perUser:
		return nil, ErrUserFull
	}

	c := NewClient(h, conn, userID)
	if h.byUser[userID] == nil {
		h.byUser[userID] = make(map[*Client]struct{})
	}
	h.byUser[userID][c] = struct{}{}
	h.total++
	middleware.ActiveWebSockets.Inc()
	return c, nil
}

// UnregisterClient drops c and closes its queue. Repeated calls are no-ops.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.byUser[c.UserID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.byUser, c.UserID)
	}
	h.total--
	middleware.ActiveWebSockets.Dec()
	c.closeSend()
}

// Broadcast queues message on every connection of userID.
func (h *Hub) Broadcast(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for c := range h.byUser[userID] {
		c.TrySend(data)
	}
}

// BroadcastAll queues message on every connection.
func (h *Hub) BroadcastAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, set := range h.byUser {
		for c := range set {
			c.TrySend(data)
		}
	}
}

// IsOnline reports whether userID has at least one open connection.
func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

// ConnectionCount is the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// StartWiring feeds the hub from the notifier's Redis subscription until ctx
// ends.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, h.route)
}

func (h *Hub) route(channel, payload string) {
	if channel == broadcastChannel {
		h.BroadcastAll(payload)
		return
	}
	if userID, ok := parseUserChannel(channel); ok {
		h.Broadcast(userID, payload)
		return
	}
	middleware.Logger.Warn("unroutable notification", slog.String("channel", channel))
}

// Shutdown closes every client's queue; each write loop then sends a
// going-away close frame and drops its connection.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, set := range h.byUser {
		for c := range set {
			c.closeSend()
		}
	}
	middleware.ActiveWebSockets.Sub(float64(h.total))
	h.byUser = make(map[uint]map[*Client]struct{})
	h.total = 0
	return nil
}
