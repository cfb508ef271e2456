// Package notification fans workflow events out to the live connections of
// their target users. Delivery is best-effort: users without a live
// connection simply miss the event.
package notification

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
	"github.com/Nurudeenbika/university-crm-backend/internal/presence"
)

const DefaultPushTimeout = 2 * time.Second

type Dispatcher struct {
	registry    *presence.Registry
	pushTimeout time.Duration
	logger      zerolog.Logger
}

func NewDispatcher(registry *presence.Registry, pushTimeout time.Duration, logger zerolog.Logger) *Dispatcher {
	if pushTimeout <= 0 {
		pushTimeout = DefaultPushTimeout
	}
	return &Dispatcher{
		registry:    registry,
		pushTimeout: pushTimeout,
		logger:      logger,
	}
}

// Dispatch pushes event to every connection currently registered for its
// target user and returns how many pushes succeeded. It never fails: a
// connection that rejects the push or misses the deadline is unregistered and
// closed, and the rest still receive the event.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.NotificationEvent) int {
	conns := d.registry.ConnectionsOf(event.TargetUserID)
	if len(conns) == 0 {
		d.logger.Debug().
			Str("type", string(event.Type)).
			Int64("target_user_id", event.TargetUserID).
			Msg("Target user offline, notification dropped")
		return 0
	}
	return d.deliver(ctx, event, conns)
}

// Broadcast pushes event to every registered connection of every user.
func (d *Dispatcher) Broadcast(ctx context.Context, event models.NotificationEvent) int {
	conns := d.registry.All()
	if len(conns) == 0 {
		return 0
	}
	return d.deliver(ctx, event, conns)
}

// Notify and NotifyAll let the dispatcher serve directly as the workflow's
// notifier in single-instance deployments.
func (d *Dispatcher) Notify(ctx context.Context, event models.NotificationEvent) {
	d.Dispatch(ctx, event)
}

func (d *Dispatcher) NotifyAll(ctx context.Context, event models.NotificationEvent) {
	d.Broadcast(ctx, event)
}

func (d *Dispatcher) deliver(ctx context.Context, event models.NotificationEvent, conns []presence.Conn) int {
	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error().Err(err).Str("type", string(event.Type)).Msg("Failed to marshal notification")
		return 0
	}

	// The workflow call that produced the event may finish (and cancel its
	// context) while pushes are still in flight.
	base := context.WithoutCancel(ctx)

	if len(conns) == 1 {
		if d.push(base, conns[0], event, payload) {
			return 1
		}
		return 0
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)
	for _, conn := range conns {
		wg.Add(1)
		go func(conn presence.Conn) {
			defer wg.Done()
			if d.push(base, conn, event, payload) {
				mu.Lock()
				delivered++
				mu.Unlock()
			}
		}(conn)
	}
	wg.Wait()

	return delivered
}

func (d *Dispatcher) push(ctx context.Context, conn presence.Conn, event models.NotificationEvent, payload []byte) bool {
	pushCtx, cancel := context.WithTimeout(ctx, d.pushTimeout)
	defer cancel()

	if err := conn.Push(pushCtx, payload); err != nil {
		d.logger.Warn().
			Err(err).
			Str("conn_id", conn.ID()).
			Str("type", string(event.Type)).
			Int64("target_user_id", event.TargetUserID).
			Msg("Push failed, dropping connection")
		d.drop(conn)
		return false
	}
	return true
}

func (d *Dispatcher) drop(conn presence.Conn) {
	d.registry.Unregister(conn)
	if closer, ok := conn.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			d.logger.Debug().Err(err).Str("conn_id", conn.ID()).Msg("Failed to close dropped connection")
		}
	}
}
