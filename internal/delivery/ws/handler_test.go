package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
	"github.com/Nurudeenbika/university-crm-backend/internal/notification"
	"github.com/Nurudeenbika/university-crm-backend/internal/presence"
)

var testConfig = Config{
	WriteWait:      time.Second,
	PongWait:       5 * time.Second,
	MaxMessageSize: 1024,
	SendBuffer:     8,
	AllowedOrigins: []string{"*"},
}

func startServer(t *testing.T) (*presence.Registry, string) {
	t.Helper()
	registry := presence.NewRegistry()
	srv := httptest.NewServer(NewHandler(registry, testConfig, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return registry, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func readJSON(t *testing.T, c *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func join(t *testing.T, c *websocket.Conn, userID int64) {
	t.Helper()
	require.NoError(t, c.WriteJSON(map[string]int64{"userId": userID}))

	var ack controlMessage
	readJSON(t, c, &ack)
	require.Equal(t, "joined", ack.Type)
	require.Equal(t, userID, ack.UserID)
}

func TestJoinAndReceiveEvents(t *testing.T) {
	registry, url := startServer(t)
	dispatcher := notification.NewDispatcher(registry, time.Second, zerolog.Nop())

	first := dial(t, url)
	second := dial(t, url)
	join(t, first, 10)
	join(t, second, 10)
	assert.Equal(t, presence.Stats{Users: 1, Connections: 2}, registry.Stats())

	event := models.NewNotificationEvent(models.EventEnrollmentUpdated, 10, "Enrollment status updated to: approved", map[string]int64{"id": 1})
	assert.Equal(t, 2, dispatcher.Dispatch(context.Background(), event))

	for _, c := range []*websocket.Conn{first, second} {
		var got map[string]interface{}
		readJSON(t, c, &got)
		assert.Equal(t, "enrollment_updated", got["type"])
		assert.Equal(t, float64(10), got["targetUserId"])
		assert.Equal(t, "Enrollment status updated to: approved", got["message"])
		assert.Contains(t, got, "timestamp")
	}
}

func TestInvalidJoinKeepsConnection(t *testing.T) {
	registry, url := startServer(t)
	c := dial(t, url)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"user":"x"}`)))
	var reply controlMessage
	readJSON(t, c, &reply)
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, presence.Stats{}, registry.Stats())

	join(t, c, 4)
	assert.True(t, registry.IsOnline(4))
}

func TestRejoinMovesConnection(t *testing.T) {
	registry, url := startServer(t)
	c := dial(t, url)

	join(t, c, 1)
	join(t, c, 2)

	assert.False(t, registry.IsOnline(1))
	assert.True(t, registry.IsOnline(2))
	assert.Equal(t, presence.Stats{Users: 1, Connections: 1}, registry.Stats())
}

func TestDisconnectUnregisters(t *testing.T) {
	registry, url := startServer(t)
	c := dial(t, url)
	join(t, c, 7)
	require.True(t, registry.IsOnline(7))

	require.NoError(t, c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	c.Close()

	assert.Eventually(t, func() bool { return !registry.IsOnline(7) }, 3*time.Second, 10*time.Millisecond)
}

func TestPushOnClosedConnection(t *testing.T) {
	conn := newConnection("c1", nil, testConfig, zerolog.Nop())
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	assert.ErrorIs(t, conn.Push(context.Background(), []byte("x")), ErrConnectionClosed)
}

func TestPushFullBufferTimesOut(t *testing.T) {
	cfg := testConfig
	cfg.SendBuffer = 1
	conn := newConnection("c1", nil, cfg, zerolog.Nop())

	require.NoError(t, conn.Push(context.Background(), []byte("first")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, conn.Push(ctx, []byte("second")), context.DeadlineExceeded)
}

func TestCheckOrigin(t *testing.T) {
	h := NewHandler(presence.NewRegistry(), Config{AllowedOrigins: []string{"https://crm.example.edu"}}, zerolog.Nop())

	req := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, h.checkOrigin(req))

	req.Header.Set("Origin", "https://crm.example.edu")
	assert.True(t, h.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, h.checkOrigin(req))
}
