package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"artenis/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebsocketHandler_RejectsPlainHTTP(t *testing.T) {
	s, app, db, _ := newRedisTestServer(t)
	user := testutil.CreateUser(t, db)

	ticket := "plain-http"
	require.NoError(t, s.redis.Set(context.Background(), wsTicketPrefix+ticket,
		strconv.FormatUint(uint64(user.ID), 10), time.Minute).Err())

	resp := call(t, app, http.MethodGet, "/api/ws?ticket="+ticket, nil, "")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestWebsocketHandler_DeliversNotifications(t *testing.T) {
	s, app, db, _ := newRedisTestServer(t)
	user := testutil.CreateUser(t, db)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	ticket := "live-socket"
	require.NoError(t, s.redis.Set(context.Background(), wsTicketPrefix+ticket,
		strconv.FormatUint(uint64(user.ID), 10), time.Minute).Err())

	url := "ws://" + ln.Addr().String() + "/api/ws?ticket=" + ticket
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool { return s.hub.IsOnline(user.ID) }, 2*time.Second, 10*time.Millisecond)

	s.hub.Broadcast(user.ID, `{"type":"post.liked","payload":{"post_id":9}}`)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"post.liked","payload":{"post_id":9}}`, string(msg))

	// the ticket was spent on the handshake
	_, resp, err = websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_ = conn.Close()
	require.Eventually(t, func() bool { return !s.hub.IsOnline(user.ID) }, 2*time.Second, 10*time.Millisecond)
}
