package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/Nurudeenbika/university-crm-backend/internal/models"
	"github.com/Nurudeenbika/university-crm-backend/pkg/rabbitmq"
)

const publishTimeout = 5 * time.Second

// GradingPublisher publishes assignment.graded events to the grading exchange.
type GradingPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     zerolog.Logger
}

func NewGradingPublisher(url, exchange, routingKey string, logger zerolog.Logger) (*GradingPublisher, error) {
	conn, err := rabbitmq.NewConnection(url)
	if err != nil {
		return nil, err
	}

	channel, err := rabbitmq.NewChannel(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := rabbitmq.DeclareExchange(channel, exchange, amqp.ExchangeDirect); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	logger.Info().
		Str("exchange", exchange).
		Str("routing_key", routingKey).
		Msg("Grading publisher connected to RabbitMQ")

	return &GradingPublisher{
		conn:       conn,
		channel:    channel,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (p *GradingPublisher) PublishAssignmentGraded(ctx context.Context, event *models.AssignmentGradedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		publishCtx,
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug().
		Int64("assignment_id", event.AssignmentID).
		Int64("course_id", event.CourseID).
		Int64("student_id", event.StudentID).
		Msg("Assignment graded event published")

	return nil
}

func (p *GradingPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.logger.Error().Err(err).Msg("Failed to close RabbitMQ channel")
	}
	if err := p.conn.Close(); err != nil {
		p.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
	}
	return nil
}
