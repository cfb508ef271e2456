package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/Nurudeenbika/university-crm-backend/pkg/rabbitmq"
)

// RabbitMQBus fans notification envelopes out through a fanout exchange.
// Every subscriber gets its own exclusive, auto-deleted queue.
type RabbitMQBus struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   zerolog.Logger

	mu sync.Mutex
}

func NewRabbitMQBus(url, exchange string, logger zerolog.Logger) (*RabbitMQBus, error) {
	conn, err := rabbitmq.NewConnection(url)
	if err != nil {
		return nil, err
	}

	channel, err := rabbitmq.NewChannel(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := rabbitmq.DeclareExchange(channel, exchange, amqp.ExchangeFanout); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	logger.Info().Str("exchange", exchange).Msg("Notification bus connected to RabbitMQ")

	return &RabbitMQBus{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func (b *RabbitMQBus) Publish(ctx context.Context, body []byte) error {
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.channel.PublishWithContext(
		publishCtx,
		b.exchange, // exchange
		"",         // routing key, ignored by fanout
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   uuid.NewString(),
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

func (b *RabbitMQBus) Subscribe(ctx context.Context) (<-chan []byte, error) {
	channel, err := rabbitmq.NewChannel(b.conn)
	if err != nil {
		return nil, err
	}

	queue, err := channel.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := channel.QueueBind(queue.Name, "", b.exchange, false, nil); err != nil {
		channel.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	deliveries, err := channel.Consume(
		queue.Name, // queue
		"",         // consumer
		true,       // auto-ack
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		channel.Close()
		return nil, fmt.Errorf("failed to consume queue: %w", err)
	}

	b.logger.Info().Str("queue", queue.Name).Msg("Subscribed to notification bus")

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer channel.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- d.Body:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (b *RabbitMQBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.channel.Close(); err != nil {
		b.logger.Error().Err(err).Msg("Failed to close RabbitMQ channel")
	}
	if err := b.conn.Close(); err != nil {
		b.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
	}
	return nil
}
