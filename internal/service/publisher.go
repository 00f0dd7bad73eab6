// Package service holds application services that sit between the HTTP
// handlers and the stores: cost assembly and event publishing.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lanparty/internal/metrics"
	"github.com/iliyamo/lanparty/internal/queue"
)

// Publisher sends domain events to RabbitMQ.  Each publish dials its own
// connection; traffic is a handful of messages per minute.  Errors are
// logged and returned so callers may ignore them.
type Publisher struct {
	url    string
	logger *logrus.Logger
}

// NewPublisher returns a publisher for the broker at url.
func NewPublisher(url string, logger *logrus.Logger) *Publisher {
	return &Publisher{url: url, logger: logger}
}

// PublishSettlement publishes to the settlement queue.
func (p *Publisher) PublishSettlement(ctx context.Context, ev queue.SettlementEvent) error {
	return p.publish(ctx, queue.SettlementQueue, ev)
}

// PublishConsumption publishes to the consumption queue.
func (p *Publisher) PublishConsumption(ctx context.Context, ev queue.ConsumptionEvent) error {
	return p.publish(ctx, queue.ConsumptionQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, name string, event any) (err error) {
	log := p.logger.WithField("queue", name)
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.EventsPublished.WithLabelValues(name, result).Inc()
	}()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// durable, not auto-deleted, not exclusive
	if _, err = ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		log.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err = ch.PublishWithContext(ctx, "", name, false, false, pub); err != nil {
		log.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	return nil
}
