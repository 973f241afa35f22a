// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package notify

import (
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/oops"
)

// Broker owns a RabbitMQ connection and a channel bound to one durable
// queue.
type Broker struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// DialBroker connects to url and declares queue.
func DialBroker(url, queue string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, oops.Code("BROKER_CONNECT_FAILED").With("queue", queue).Wrap(err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, oops.Code("BROKER_CONNECT_FAILED").With("operation", "open channel").Wrap(err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, oops.Code("BROKER_CONNECT_FAILED").With("operation", "declare queue").With("queue", queue).Wrap(err)
	}
	return &Broker{conn: conn, ch: ch, queue: queue}, nil
}

// Publisher returns a Publisher on the broker queue.
func (b *Broker) Publisher(opts ...PublisherOption) *Publisher {
	return NewPublisher(b.ch, b.queue, opts...)
}

// Consume starts a manual-ack consumer with the given prefetch.
func (b *Broker) Consume(prefetch int) (<-chan amqp.Delivery, error) {
	if err := b.ch.Qos(prefetch, 0, false); err != nil {
		return nil, oops.Code("BROKER_CONSUME_FAILED").With("operation", "qos").Wrap(err)
	}
	deliveries, err := b.ch.Consume(b.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, oops.Code("BROKER_CONSUME_FAILED").With("queue", b.queue).Wrap(err)
	}
	return deliveries, nil
}

// Close closes the channel and the connection.
func (b *Broker) Close() error {
	chErr := b.ch.Close()
	connErr := b.conn.Close()
	if err := errors.Join(chErr, connErr); err != nil {
		return oops.Code("BROKER_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
