package consumer

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"gateway-service/internal"
	"gateway-service/store"
)

// ErrDeliveriesClosed is returned by Run when the broker closes the delivery
// channel, typically because the channel or connection went away.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Channel is the subset of *amqp.Channel the consumer uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Config is the fixed broker binding.
type Config struct {
	Exchange    string
	Queue       string
	RoutingKey  string
	ConsumerTag string
	// RejectMalformed nacks undecodable messages without requeue instead of
	// acking them, so a dead-letter exchange can collect them.
	RejectMalformed    bool
	DeadLetterExchange string
}

// Consumer reads room events from one queue and hands each to the
// dispatcher. Messages are handled strictly one at a time: a message is
// decoded, dispatched and settled before the next is read.
type Consumer struct {
	ch         Channel
	cfg        Config
	dispatcher internal.EventDispatcher
	store      store.EventStore
	logger     *zap.Logger
}

func New(ch Channel, cfg Config, d internal.EventDispatcher, s store.EventStore, logger *zap.Logger) *Consumer {
	return &Consumer{ch: ch, cfg: cfg, dispatcher: d, store: s, logger: logger}
}

// Setup asserts the durable topic exchange and queue, binds them, and
// registers the consumer with manual acknowledgment. It is safe to repeat.
func (c *Consumer) Setup() (<-chan amqp.Delivery, error) {
	if err := c.ch.ExchangeDeclare(c.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %q: %w", c.cfg.Exchange, err)
	}

	var args amqp.Table
	if c.cfg.DeadLetterExchange != "" {
		args = amqp.Table{"x-dead-letter-exchange": c.cfg.DeadLetterExchange}
	}
	q, err := c.ch.QueueDeclare(c.cfg.Queue, true, false, false, false, args)
	if err != nil {
		return nil, fmt.Errorf("declare queue %q: %w", c.cfg.Queue, err)
	}

	if err := c.ch.QueueBind(q.Name, c.cfg.RoutingKey, c.cfg.Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %q to %q: %w", q.Name, c.cfg.Exchange, err)
	}

	// One unacknowledged message at a time.
	if err := c.ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	msgs, err := c.ch.Consume(q.Name, c.cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("register consumer: %w", err)
	}

	c.logger.Info("bound queue to exchange",
		zap.String("queue", q.Name), zap.String("exchange", c.cfg.Exchange),
		zap.String("routingKey", c.cfg.RoutingKey))
	return msgs, nil
}

// Run handles deliveries until ctx is done (returning nil) or msgs closes
// (returning ErrDeliveriesClosed).
func (c *Consumer) Run(ctx context.Context, msgs <-chan amqp.Delivery) error {
	c.logger.Info("consumer started, waiting for room events")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.handle(ctx, d)
		}
	}
}

// Start runs Setup then Run.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.Setup()
	if err != nil {
		return err
	}
	return c.Run(ctx, msgs)
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	event, err := internal.DecodeEvent(d.Body)
	if err != nil {
		c.logger.Warn("dropping malformed message",
			zap.Uint64("deliveryTag", d.DeliveryTag), zap.ByteString("body", truncate(d.Body, 256)), zap.Error(err))
		c.settleMalformed(d)
		return
	}

	delivered := c.dispatcher.DispatchEvent(event)
	c.logger.Debug("dispatched event",
		zap.String("eventType", event.Type), zap.String("room", event.RoomID), zap.Int("subscribers", delivered))

	if err := d.Ack(false); err != nil {
		c.logger.Error("failed to ack message", zap.Uint64("deliveryTag", d.DeliveryTag), zap.Error(err))
	}

	if err := c.store.IncrementEvent(ctx, event.Type); err != nil {
		c.logger.Warn("failed to record event", zap.String("eventType", event.Type), zap.Error(err))
	}
}

func (c *Consumer) settleMalformed(d amqp.Delivery) {
	var err error
	if c.cfg.RejectMalformed {
		err = d.Nack(false, false)
	} else {
		err = d.Ack(false)
	}
	if err != nil {
		c.logger.Error("failed to settle malformed message", zap.Uint64("deliveryTag", d.DeliveryTag), zap.Error(err))
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
