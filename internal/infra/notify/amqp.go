package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"foodrescue/internal/usecase"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPNotifier は注文イベントをRabbitMQのキューに積む
type AMQPNotifier struct {
	conn  *amqp.Connection
	mu    sync.Mutex
	ch    *amqp.Channel
	queue string
}

func NewAMQPNotifier(uri string, queue string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	//durable / autoDelete / exclusive / noWait
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPNotifier{conn: conn, ch: ch, queue: q.Name}, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, ev usecase.OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch.PublishWithContext(ctx,
		"",
		n.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         string(ev.Type),
			Timestamp:    ev.OccurredAt,
			Body:         body,
		},
	)
}

func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ch.Close(); err != nil {
		n.conn.Close()
		return err
	}
	return n.conn.Close()
}
