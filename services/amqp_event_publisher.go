package services

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"gateway-service/internal"
)

// Publisher is the part of *amqp.Channel used to send events.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AmqpEventPublisher publishes room events to a topic exchange. An AMQP
// channel is not safe for concurrent publishes, so calls are serialized.
type AmqpEventPublisher struct {
	amqpChannel  Publisher
	exchange     string
	routingKey   string
	channelMutex sync.Mutex
}

func NewAmqpEventPublisher(ch Publisher, exchange, routingKey string) *AmqpEventPublisher {
	return &AmqpEventPublisher{
		amqpChannel: ch,
		exchange:    exchange,
		routingKey:  routingKey,
	}
}

func (p *AmqpEventPublisher) PublishEvent(ctx context.Context, event internal.Event) error {
	p.channelMutex.Lock()
	defer p.channelMutex.Unlock()

	err := p.amqpChannel.PublishWithContext(
		ctx,
		p.exchange,
		p.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         event.Type,
			Body:         event.Payload,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s to %q: %w", event.Type, p.exchange, err)
	}
	return nil
}
