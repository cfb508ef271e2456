package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
	"github.com/Nurudeenbika/university-crm-backend/internal/presence"
)

type fakeConn struct {
	id     string
	fail   error
	block  bool
	mu     sync.Mutex
	pushed [][]byte
	closed bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Push(ctx context.Context, payload []byte) error {
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if c.fail != nil {
		return c.fail
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushed = append(c.pushed, payload)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) events(t *testing.T) []models.NotificationEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.NotificationEvent, 0, len(c.pushed))
	for _, p := range c.pushed {
		var ev models.NotificationEvent
		require.NoError(t, json.Unmarshal(p, &ev))
		out = append(out, ev)
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newDispatcher(timeout time.Duration) (*Dispatcher, *presence.Registry) {
	registry := presence.NewRegistry()
	return NewDispatcher(registry, timeout, zerolog.Nop()), registry
}

func TestDispatchDeliversToEveryConnection(t *testing.T) {
	d, registry := newDispatcher(time.Second)
	c1, c2 := &fakeConn{id: "c1"}, &fakeConn{id: "c2"}
	other := &fakeConn{id: "other"}
	registry.Register(7, c1)
	registry.Register(7, c2)
	registry.Register(8, other)

	event := models.NewNotificationEvent(models.EventEnrollmentUpdated, 7, "Enrollment status updated to: approved", map[string]interface{}{"id": 1})
	delivered := d.Dispatch(context.Background(), event)

	assert.Equal(t, 2, delivered)
	for _, c := range []*fakeConn{c1, c2} {
		got := c.events(t)
		require.Len(t, got, 1)
		assert.Equal(t, models.EventEnrollmentUpdated, got[0].Type)
		assert.Equal(t, int64(7), got[0].TargetUserID)
		assert.Equal(t, "Enrollment status updated to: approved", got[0].Message)
	}
	assert.Empty(t, other.events(t))
}

func TestDispatchFailureIsolatedPerConnection(t *testing.T) {
	d, registry := newDispatcher(time.Second)
	broken := &fakeConn{id: "broken", fail: errors.New("connection closed")}
	healthy := &fakeConn{id: "healthy"}
	registry.Register(7, broken)
	registry.Register(7, healthy)

	delivered := d.Dispatch(context.Background(), models.NewNotificationEvent(models.EventEnrollmentDropped, 7, "bye", nil))

	assert.Equal(t, 1, delivered)
	assert.Len(t, healthy.events(t), 1)
	assert.True(t, broken.isClosed())
	assert.False(t, healthy.isClosed())

	conns := registry.ConnectionsOf(7)
	require.Len(t, conns, 1)
	assert.Equal(t, "healthy", conns[0].ID())
}

func TestDispatchUnregistersSlowConnection(t *testing.T) {
	d, registry := newDispatcher(20 * time.Millisecond)
	slow := &fakeConn{id: "slow", block: true}
	registry.Register(7, slow)

	start := time.Now()
	delivered := d.Dispatch(context.Background(), models.NewNotificationEvent(models.EventEnrollmentCreated, 7, "hi", nil))

	assert.Zero(t, delivered)
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, registry.ConnectionsOf(7))
	assert.False(t, registry.IsOnline(7))
}

func TestDispatchToOfflineUserIsDropped(t *testing.T) {
	d, _ := newDispatcher(time.Second)

	assert.Zero(t, d.Dispatch(context.Background(), models.NewNotificationEvent(models.EventEnrollmentCreated, 42, "hi", nil)))
}

func TestDispatchIgnoresCanceledCallerContext(t *testing.T) {
	d, registry := newDispatcher(time.Second)
	c := &fakeConn{id: "c1"}
	registry.Register(7, c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 1, d.Dispatch(ctx, models.NewNotificationEvent(models.EventEnrollmentCreated, 7, "hi", nil)))
}

func TestBroadcastReachesAllUsers(t *testing.T) {
	d, registry := newDispatcher(time.Second)
	a, b := &fakeConn{id: "a"}, &fakeConn{id: "b"}
	broken := &fakeConn{id: "broken", fail: errors.New("gone")}
	registry.Register(1, a)
	registry.Register(2, b)
	registry.Register(3, broken)

	delivered := d.Broadcast(context.Background(), models.NewNotificationEvent(models.EventAnnouncement, 0, "maintenance tonight", nil))

	assert.Equal(t, 2, delivered)
	assert.Len(t, a.events(t), 1)
	assert.Len(t, b.events(t), 1)
	assert.Equal(t, presence.Stats{Users: 2, Connections: 2}, registry.Stats())
}

func TestEventPayloadSchema(t *testing.T) {
	d, registry := newDispatcher(time.Second)
	c := &fakeConn{id: "c1"}
	registry.Register(7, c)

	d.Dispatch(context.Background(), models.NewNotificationEvent(models.EventEnrollmentCreated, 7, "hi", map[string]interface{}{"course_id": 3}))

	require.Len(t, c.pushed, 1)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(c.pushed[0], &raw))
	assert.ElementsMatch(t, []string{"type", "targetUserId", "message", "data", "timestamp"}, keys(raw))

	_, err := time.Parse(time.RFC3339Nano, raw["timestamp"].(string))
	assert.NoError(t, err)
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
