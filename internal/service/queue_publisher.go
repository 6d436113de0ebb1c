// Package queue_publisher publishes auth events to RabbitMQ. Errors are
// logged and returned so callers can ignore failures without interrupting
// the request that produced the event.
package queue_publisher

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/meatshop-backoffice/internal/logging"
	q "github.com/iliyamo/meatshop-backoffice/internal/queue"
)

// dialTimeout keeps a dead broker from stalling the request that emits.
const dialTimeout = 2 * time.Second

// Publisher dials the broker per message. Auth events are rare enough that a
// pooled connection would only add reconnect bookkeeping.
type Publisher struct {
	URL    string
	Logger logging.Logger
}

func New(url string, logger logging.Logger) *Publisher {
	return &Publisher{URL: url, Logger: logger}
}

func (p *Publisher) dial() (*amqp.Connection, error) {
	return amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
}

// Publish sends ev to the auth.events queue as a persistent message.
func (p *Publisher) Publish(ctx context.Context, ev q.AuthEvent) error {
	if ev.OccurredAt == "" {
		ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	conn, err := p.dial()
	if err != nil {
		p.Logger.Warn(ctx, "rabbitmq: dial failed", "error", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Logger.Warn(ctx, "rabbitmq: channel open failed", "error", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(q.AuthEventsQueue, true, false, false, false, nil); err != nil {
		p.Logger.Warn(ctx, "rabbitmq: queue declare failed", "error", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", q.AuthEventsQueue, false, false, pub); err != nil {
		p.Logger.Warn(ctx, "rabbitmq: publish failed", "error", err, "type", ev.Type)
		return err
	}
	return nil
}

// Nop drops every event. Used when AUTH_EVENTS_ENABLED is off.
type Nop struct{}

func (Nop) Publish(context.Context, q.AuthEvent) error { return nil }
