package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const eventsQueueName = "auth.events"

// Publisher sends security events to the auth.events queue. Publishing
// is best-effort: errors are logged and returned, and callers on the
// request path ignore them rather than fail the request.
type Publisher struct {
	url string
	log *zap.Logger
}

// NewPublisher returns a Publisher, or nil when url is empty so event
// publishing can be switched off entirely.
func NewPublisher(url string, log *zap.Logger) *Publisher {
	if url == "" {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, log: log}
}

// Publish marshals the event and publishes it persistently to the
// durable auth.events queue. The connection is established per publish;
// event volume here is a trickle (logins, revocations, denials), not a
// message-per-request firehose.
func (p *Publisher) Publish(ctx context.Context, ev SecurityEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("rabbitmq dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(eventsQueueName, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq queue declare failed", zap.Error(err))
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
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", eventsQueueName, false, false, pub); err != nil {
		p.log.Warn("rabbitmq publish failed", zap.Error(err))
		return err
	}
	return nil
}
