package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// openAMQP dials uri, opens a channel and declares the non-durable queue.
// It is a seam for tests.
var openAMQP = func(uri, queue string) (amqpChannel, io.Closer, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, false, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp queue declare: %w", err)
	}

	return ch, conn, nil
}

// AMQPPublisher emits pattern/data envelopes onto a queue through the
// default exchange.
type AMQPPublisher struct {
	ch    amqpChannel
	conn  io.Closer
	queue string
}

func NewAMQPPublisher(uri, queue string) (*AMQPPublisher, error) {
	ch, conn, err := openAMQP(uri, queue)
	if err != nil {
		return nil, err
	}
	return &AMQPPublisher{ch: ch, conn: conn, queue: queue}, nil
}

type envelope struct {
	Pattern string `json:"pattern"`
	Data    any    `json:"data"`
}

func (p *AMQPPublisher) Publish(ctx context.Context, pattern string, data any) error {
	body, err := json.Marshal(envelope{Pattern: pattern, Data: data})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", pattern, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	chErr := p.ch.Close()
	connErr := p.conn.Close()
	if chErr != nil {
		return chErr
	}
	return connErr
}
