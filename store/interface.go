package store

import "context"

// EventStore defines the interface for relayed-event counters.
// This abstraction allows for mocking in tests and swapping storage implementations.
type EventStore interface {
	IncrementEvent(ctx context.Context, eventType string) error
	GetEventCounts(ctx context.Context) (map[string]int64, error)
}
