package invoice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"core/internal/eventbus"
)

// AMQPPublisher implements eventbus.Publisher over a real broker
// connection, grounded on notification/cmd/main.go's "order.created"
// queue — that service was the consumer side, this is the producer.
type AMQPPublisher struct {
	channel *amqp.Channel
	queue   string
}

// NewAMQPPublisher dials url and declares the order.created queue.
// Returns an error if the broker is unreachable; callers should treat
// this as optional and proceed without it, per spec.md §6.10.
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("invoice: amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("invoice: amqp channel: %w", err)
	}
	q, err := ch.QueueDeclare("order.created", true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("invoice: amqp queue declare: %w", err)
	}
	return &AMQPPublisher{channel: ch, queue: q.Name}, nil
}

// Publish implements eventbus.Publisher. routingKey is ignored; the
// queue was fixed at declare time, matching notification's one-
// queue-per-event-type convention.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, event eventbus.Event) error {
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	return p.channel.Publish("", p.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}
