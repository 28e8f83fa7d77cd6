package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Dialer opens a broker connection. amqp.Dial satisfies it.
type Dialer func(url string) (*amqp.Connection, error)

// Connect dials RabbitMQ, retrying up to attempts times with delay between
// tries. It gives up early when ctx is cancelled.
func Connect(ctx context.Context, dial Dialer, url string, attempts int, delay time.Duration, logger *zap.Logger) (*amqp.Connection, error) {
	if dial == nil {
		dial = amqp.Dial
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var connection *amqp.Connection
		if connection, err = dial(url); err == nil {
			logger.Info("connected to RabbitMQ", zap.Int("attempt", attempt))
			return connection, nil
		}
		if attempt == attempts {
			break
		}
		logger.Warn("failed to connect to RabbitMQ, retrying",
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to RabbitMQ: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("could not connect to RabbitMQ after %d attempts: %w", attempts, err)
}
