// Command emit publishes a single room event to the gateway's exchange.
//
//	emit --type USER_JOINED --room r1 --user u1 --field seat=4
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"gateway-service/common/rabbitmq"
	"gateway-service/config"
	"gateway-service/internal"
	"gateway-service/services"
)

func main() {
	var (
		configPath string
		eventType  string
		roomID     string
		userID     string
		fields     []string
	)
	flag.StringVar(&configPath, "config", "", "path to a YAML config file")
	flag.StringVar(&eventType, "type", "", "event type, e.g. USER_JOINED")
	flag.StringVar(&roomID, "room", "", "room id")
	flag.StringVar(&userID, "user", "", "user id")
	flag.StringArrayVar(&fields, "field", nil, "extra payload field as key=value (repeatable)")
	flag.Parse()

	if err := run(configPath, eventType, roomID, userID, fields); err != nil {
		fmt.Fprintln(os.Stderr, "emit:", err)
		os.Exit(1)
	}
}

func run(configPath, eventType, roomID, userID string, fields []string) error {
	if err := loadDotEnv(".env"); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	extra, err := parseFields(fields)
	if err != nil {
		return err
	}
	event, err := internal.NewEvent(eventType, roomID, userID, extra)
	if err != nil {
		return err
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := rabbitmq.Connect(ctx, nil, cfg.Broker.URL, cfg.Broker.ConnectAttempts, cfg.Broker.RetryDelay, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	publisher := services.NewAmqpEventPublisher(ch, cfg.Broker.Exchange, cfg.Broker.RoutingKey)
	if err := publisher.PublishEvent(ctx, event); err != nil {
		return err
	}

	logger.Info("published event",
		zap.String("eventType", event.Type), zap.String("room", event.RoomID),
		zap.String("exchange", cfg.Broker.Exchange), zap.ByteString("payload", event.Payload))
	return nil
}

// loadDotEnv loads path into the environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// parseFields turns key=value pairs into payload fields. Values that parse
// as JSON keep their type, anything else is a string.
func parseFields(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q, want key=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			v = value
		}
		out[key] = v
	}
	return out, nil
}
