package queue

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Delivery is one message handed to a worker. Exactly one of Ack or Nack
// must be called.
type Delivery struct {
	MessageID   string
	Body        []byte
	Timestamp   time.Time
	Redelivered bool
	Ack         func(multiple bool) error
	Nack        func(multiple bool, requeue bool) error
}

type Consumer interface {
	Consume(ctx context.Context) (<-chan Delivery, error)
	Close() error
}

type rabbitMQConsumer struct {
	channel     *amqp.Channel
	queue       string
	consumerTag string
	prefetch    int
	logger      zerolog.Logger
}

func NewRabbitMQConsumer(channel *amqp.Channel, queue, consumerTag string, prefetch int, logger zerolog.Logger) Consumer {
	if prefetch < 1 {
		prefetch = 1
	}
	return &rabbitMQConsumer{
		channel:     channel,
		queue:       queue,
		consumerTag: consumerTag,
		prefetch:    prefetch,
		logger:      logger.With().Str("queue", queue).Logger(),
	}
}

// Consume starts delivery from the queue. The returned channel is closed when
// ctx is done or the broker stops delivering; an undelivered message in
// flight at cancellation is requeued.
func (c *rabbitMQConsumer) Consume(ctx context.Context) (<-chan Delivery, error) {
	if err := c.channel.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	incoming, err := c.channel.Consume(c.queue, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume queue %s: %w", c.queue, err)
	}

	out := make(chan Delivery)
	go c.forward(ctx, incoming, out)

	c.logger.Info().
		Str("consumer_tag", c.consumerTag).
		Int("prefetch", c.prefetch).
		Msg("Grading consumer started")

	return out, nil
}

func (c *rabbitMQConsumer) forward(ctx context.Context, incoming <-chan amqp.Delivery, out chan<- Delivery) {
	defer close(out)

	for {
		var d amqp.Delivery
		var ok bool

		select {
		case <-ctx.Done():
			return
		case d, ok = <-incoming:
			if !ok {
				c.logger.Warn().Msg("Broker closed the delivery channel")
				return
			}
		}

		delivery := Delivery{
			MessageID:   d.MessageId,
			Body:        d.Body,
			Timestamp:   d.Timestamp,
			Redelivered: d.Redelivered,
			Ack:         d.Ack,
			Nack:        d.Nack,
		}

		select {
		case out <- delivery:
		case <-ctx.Done():
			if err := d.Nack(false, true); err != nil {
				c.logger.Error().Err(err).Msg("Failed to requeue message on shutdown")
			}
			return
		}
	}
}

func (c *rabbitMQConsumer) Close() error {
	if err := c.channel.Cancel(c.consumerTag, false); err != nil {
		c.logger.Error().Err(err).Msg("Failed to cancel consumer")
	}
	if err := c.channel.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to close consumer channel")
	}
	return nil
}
