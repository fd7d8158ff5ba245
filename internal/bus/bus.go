// Package bus implements the MessageBus client of spec.md §4.2: durable
// publish to a direct-routing exchange and consumption off of it, built on
// the teacher's wb-go/wbf/rabbitmq wrapper (Publisher.PublishWithRetry,
// Consumer.ConsumeWithRetry). It generalizes the teacher's single-queue
// NotificationQueue into the four routing keys spec.md §6 names.
package bus

import (
	"encoding/json"
	"fmt"

	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/retry"
)

// Routing keys / queue names, per spec.md §6.
const (
	DefaultExchange = "notifications.direct"

	RoutingKeyEmail       = "email"
	RoutingKeyPush        = "push"
	RoutingKeyFailed      = "failed"
	RoutingKeyUserCreated = "user.created"

	QueueEmail  = "email.queue"
	QueuePush   = "push.queue"
	QueueFailed = "failed.queue"
)

// PublishOptions carries the transport hint fields spec.md §3/§4.2 mention.
type PublishOptions struct {
	Priority  int
	Persistent bool
}

// Bus wraps a single RabbitMQ channel with the exchange and queues this
// system needs.
type Bus struct {
	channel  *rabbitmq.Channel
	exchange *rabbitmq.Exchange
	pub      *rabbitmq.Publisher
}

// New declares the exchange and the three consumed/dead-lettered queues
// (email.queue, push.queue, failed.queue) and binds them by routing key,
// exactly as the teacher's NewNotificationQueue does for its single queue.
// user.created is published but intentionally left unbound — spec.md §6
// treats it as an out-of-band producer with no in-process consumer.
func New(ch *rabbitmq.Channel, exchangeName string) (*Bus, error) {
	exchange := rabbitmq.NewExchange(exchangeName, "direct")
	if err := exchange.BindToChannel(ch); err != nil {
		return nil, fmt.Errorf("bind exchange: %w", err)
	}

	qm := rabbitmq.NewQueueManager(ch)

	queues := []struct {
		name       string
		routingKey string
	}{
		{QueueEmail, RoutingKeyEmail},
		{QueuePush, RoutingKeyPush},
		{QueueFailed, RoutingKeyFailed},
	}

	for _, q := range queues {
		declared, err := qm.DeclareQueue(q.name, rabbitmq.QueueConfig{Durable: true})
		if err != nil {
			return nil, fmt.Errorf("declare queue %s: %w", q.name, err)
		}

		if err := ch.QueueBind(declared.Name, q.routingKey, exchange.Name(), false, nil); err != nil {
			return nil, fmt.Errorf("bind queue %s: %w", q.name, err)
		}
	}

	pub := rabbitmq.NewPublisher(ch, exchange.Name())

	return &Bus{channel: ch, exchange: exchange, pub: pub}, nil
}

// Publish marshals payload as JSON and publishes it to routingKey. opts is
// not passed to the broker: the teacher's Publisher only ever exposes
// PublishWithRetry(body, routingKey, contentType, strategy), with no headers
// or delivery-mode parameter, so no priority header is set and
// opts.Persistent has no effect here. Priority reaches consumers only as the
// Priority field of an EnqueuedMessage body.
func (b *Bus) Publish(routingKey string, payload interface{}, opts PublishOptions, strategy retry.Strategy) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return b.pub.PublishWithRetry(body, routingKey, "application/json", strategy)
}

// Delivery is one message handed to a pipeline. The teacher's Consumer
// (ConsumeWithRetry) hands back raw bytes with no per-message ack/nack
// handle — its own handler never acks or nacks explicitly, relying on the
// consumer's auto-ack behavior for at-most-once delivery. Ack/Nack are kept
// here as no-ops so the pipeline's state machine can still call them at
// each terminal state (I4) without depending on a handle this client
// doesn't expose; the actual redelivery guarantee for retry/dead-letter
// comes from the pipeline's own explicit republish (spec.md §4.5), not from
// broker-level requeue.
type Delivery struct {
	Body []byte
	Ack  func()
	Nack func()
}

// Consume starts a consumer on queueName and delivers each message to out.
func (b *Bus) Consume(queueName string, strategy retry.Strategy, out chan<- Delivery) error {
	cons := rabbitmq.NewConsumer(b.channel, rabbitmq.NewConsumerConfig(queueName))

	raw := make(chan []byte)

	go func() {
		for body := range raw {
			out <- Delivery{
				Body: body,
				Ack:  func() {},
				Nack: func() {},
			}
		}
	}()

	return cons.ConsumeWithRetry(raw, strategy)
}
