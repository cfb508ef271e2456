package notification

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
)

const (
	relayRetryMin = 500 * time.Millisecond
	relayRetryMax = 30 * time.Second

	// envelopes remembered for duplicate suppression
	recentEnvelopes = 4096
)

// Bus carries serialized envelopes to every instance, including the sender.
type Bus interface {
	Publish(ctx context.Context, body []byte) error
	Subscribe(ctx context.Context) (<-chan []byte, error)
	Close() error
}

// BusNotifier publishes events to the bus so that each instance's Relay
// delivers them to its own connections. While this instance's relay has no
// subscription, or when publishing fails, events are delivered locally.
type BusNotifier struct {
	bus    Bus
	relay  *Relay
	logger zerolog.Logger
}

func NewBusNotifier(bus Bus, relay *Relay, logger zerolog.Logger) *BusNotifier {
	return &BusNotifier{
		bus:    bus,
		relay:  relay,
		logger: logger,
	}
}

func (n *BusNotifier) Notify(ctx context.Context, event models.NotificationEvent) {
	n.publish(ctx, event, false)
}

func (n *BusNotifier) NotifyAll(ctx context.Context, event models.NotificationEvent) {
	n.publish(ctx, event, true)
}

func (n *BusNotifier) publish(ctx context.Context, event models.NotificationEvent, broadcast bool) {
	envelope := models.BusEnvelope{
		ID:        uuid.NewString(),
		Origin:    n.relay.origin,
		Broadcast: broadcast,
		Event:     event,
	}

	// Marked as seen before publishing, so a relay that resubscribes in
	// between does not deliver it a second time.
	local := !n.relay.Subscribed()
	if local {
		n.logger.Debug().Str("envelope_id", envelope.ID).Msg("Relay not subscribed, delivering locally")
		n.relay.deliverLocal(ctx, envelope)
	}

	body, err := json.Marshal(envelope)
	if err == nil {
		err = n.bus.Publish(context.WithoutCancel(ctx), body)
	}
	if err == nil {
		return
	}

	n.logger.Warn().
		Err(err).
		Str("type", string(event.Type)).
		Int64("target_user_id", event.TargetUserID).
		Msg("Failed to publish notification, delivering locally")

	if !local {
		n.relay.deliverLocal(ctx, envelope)
	}
}

// Relay feeds envelopes arriving from the bus into the local dispatcher and
// keeps its subscription open until stopped.
type Relay struct {
	bus    Bus
	local  *Dispatcher
	origin string
	logger zerolog.Logger

	subscribed atomic.Bool
	seen       *envelopeSet

	retryMin time.Duration
	retryMax time.Duration
}

func NewRelay(bus Bus, local *Dispatcher, origin string, logger zerolog.Logger) *Relay {
	return &Relay{
		bus:      bus,
		local:    local,
		origin:   origin,
		logger:   logger,
		seen:     newEnvelopeSet(recentEnvelopes),
		retryMin: relayRetryMin,
		retryMax: relayRetryMax,
	}
}

// Subscribed reports whether envelopes published now will reach this relay.
func (r *Relay) Subscribed() bool {
	return r.subscribed.Load()
}

// Run blocks until ctx is done. A failed or closed subscription is retried
// with exponential backoff.
func (r *Relay) Run(ctx context.Context) error {
	backoff := r.retryMin

	for {
		msgs, err := r.bus.Subscribe(ctx)
		if err == nil {
			r.subscribed.Store(true)
			r.logger.Info().Msg("Notification relay subscribed")
			backoff = r.retryMin

			r.consume(ctx, msgs)
			r.subscribed.Store(false)
		}

		if ctx.Err() != nil {
			r.logger.Info().Msg("Notification relay stopped")
			return nil
		}

		r.logger.Warn().
			Err(err).
			Dur("retry_in", backoff).
			Msg("Notification bus subscription lost, resubscribing")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info().Msg("Notification relay stopped")
			return nil
		case <-timer.C:
		}

		backoff *= 2
		if backoff > r.retryMax {
			backoff = r.retryMax
		}
	}
}

func (r *Relay) consume(ctx context.Context, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case body, ok := <-msgs:
			if !ok {
				return
			}
			r.handle(ctx, body)
		}
	}
}

func (r *Relay) handle(ctx context.Context, body []byte) {
	var envelope models.BusEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		r.logger.Error().Err(err).Msg("Discarding malformed notification envelope")
		return
	}

	if !r.seen.add(envelope.ID) {
		r.logger.Debug().
			Str("envelope_id", envelope.ID).
			Str("origin", envelope.Origin).
			Bool("own", envelope.Origin == r.origin).
			Msg("Skipping already delivered envelope")
		return
	}
	r.dispatch(ctx, envelope)
}

func (r *Relay) deliverLocal(ctx context.Context, envelope models.BusEnvelope) {
	r.seen.add(envelope.ID)
	r.dispatch(ctx, envelope)
}

func (r *Relay) dispatch(ctx context.Context, envelope models.BusEnvelope) {
	if envelope.Broadcast {
		r.local.Broadcast(ctx, envelope.Event)
		return
	}
	r.local.Dispatch(ctx, envelope.Event)
}

// envelopeSet remembers the most recent envelope ids.
type envelopeSet struct {
	mu   sync.Mutex
	ids  map[string]struct{}
	ring []string
	next int
}

func newEnvelopeSet(size int) *envelopeSet {
	return &envelopeSet{
		ids:  make(map[string]struct{}, size),
		ring: make([]string, size),
	}
}

// add records id and reports whether it was new. Envelopes without an id are
// always new.
func (s *envelopeSet) add(id string) bool {
	if id == "" {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}
	if old := s.ring[s.next]; old != "" {
		delete(s.ids, old)
	}
	s.ring[s.next] = id
	s.next = (s.next + 1) % len(s.ring)
	s.ids[id] = struct{}{}
	return true
}
