package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

func NewConnection(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

func NewChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return channel, nil
}

// DeclareExchange declares a durable, non auto-deleted exchange of the given kind.
func DeclareExchange(channel *amqp.Channel, name, kind string) error {
	err := channel.ExchangeDeclare(
		name,  // name
		kind,  // type
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", name, err)
	}
	return nil
}

// DeclareBoundQueue declares a durable queue and binds it to exchange.
func DeclareBoundQueue(channel *amqp.Channel, queue, exchange, routingKey string) (amqp.Queue, error) {
	q, err := channel.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	if err := channel.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to bind queue %s: %w", queue, err)
	}
	return q, nil
}
