package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lanparty/internal/metrics"
)

// Consumer listens to the settlement and consumption queues and appends a
// one-line record of every event to a journal file under LogDir.
type Consumer struct {
	URL    string
	LogDir string
	Logger *logrus.Logger

	mu sync.Mutex
}

// NewConsumer returns a consumer writing into logDir.
func NewConsumer(url, logDir string, logger *logrus.Logger) *Consumer {
	if logger == nil {
		panic("queue: nil logger")
	}
	if logDir == "" {
		logDir = "logs"
	}
	return &Consumer{URL: url, LogDir: logDir, Logger: logger}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled. Broker
// failures trigger a reconnect with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Logger.WithError(err).Warnf("event-consumer: dial failed, retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Logger.WithError(err).Warn("event-consumer: consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Logger.WithError(err).Warn("event-consumer: set QoS failed")
	}

	settlements, err := c.subscribe(ch, SettlementQueue)
	if err != nil {
		return err
	}
	consumption, err := c.subscribe(ch, ConsumptionQueue)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-settlements:
			if !ok {
				return errors.New("settlement deliveries channel closed")
			}
			c.deliver(SettlementQueue, d)
		case d, ok := <-consumption:
			if !ok {
				return errors.New("consumption deliveries channel closed")
			}
			c.deliver(ConsumptionQueue, d)
		}
	}
}

func (c *Consumer) subscribe(ch *amqp.Channel, queue string) (<-chan amqp.Delivery, error) {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("queue declare %s: %w", queue, err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue consume %s: %w", queue, err)
	}
	return msgs, nil
}

func (c *Consumer) deliver(queue string, d amqp.Delivery) {
	metrics.EventsConsumed.WithLabelValues(queue).Inc()
	if err := c.Handle(queue, d.Body); err != nil {
		c.Logger.WithError(err).WithField("queue", queue).Error("event-consumer: handle message failed")
		_ = d.Nack(false, false) // do not requeue, avoids tight loops
		return
	}
	_ = d.Ack(false)
}

// Handle decodes one message body from queue and appends it to the journal.
func (c *Consumer) Handle(queue string, body []byte) error {
	var line string
	switch queue {
	case SettlementQueue:
		var ev SettlementEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = FormatSettlement(ev)
	case ConsumptionQueue:
		var ev ConsumptionEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = FormatConsumption(ev)
	default:
		return fmt.Errorf("unknown queue %q", queue)
	}
	return c.appendLine(queue+".log", line)
}

func (c *Consumer) appendLine(name, line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.LogDir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.LogDir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// FormatSettlement renders a settlement event as a single journal line.
func FormatSettlement(ev SettlementEvent) string {
	return fmt.Sprintf("[%s] Settlement %s | event_id=%d | guest_id=%d | guest=%q | status=%s | version=%d | vs=%s | final=%s\n",
		ev.OccurredAt, ev.Action, ev.EventID, ev.GuestID, ev.GuestName, ev.Status, ev.Version, ev.VariableSymbol, ev.FinalTotal)
}

// FormatConsumption renders a consumption event as a single journal line.
func FormatConsumption(ev ConsumptionEvent) string {
	return fmt.Sprintf("[%s] Consumption %s | record_id=%d | event_id=%d | guest_id=%d | product_id=%d | qty=%d\n",
		ev.OccurredAt, ev.Op, ev.RecordID, ev.EventID, ev.GuestID, ev.ProductID, ev.Quantity)
}
