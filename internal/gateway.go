package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEvent marks a broker payload that can never be dispatched.
var ErrMalformedEvent = errors.New("malformed event")

// Event is a room event published by the backend. Payload is the compacted
// broker JSON object, extra fields included, and is what subscribers receive.
type Event struct {
	Type    string
	RoomID  string
	UserID  string
	Payload json.RawMessage
}

type eventHeader struct {
	EventType string `json:"eventType"`
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
}

// DecodeEvent parses a broker message body. Any error wraps ErrMalformedEvent.
func DecodeEvent(body []byte) (Event, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if b := compact.Bytes(); len(b) == 0 || b[0] != '{' {
		return Event{}, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedEvent)
	}

	var h eventHeader
	if err := json.Unmarshal(compact.Bytes(), &h); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if h.RoomID == "" {
		return Event{}, fmt.Errorf("%w: missing roomId", ErrMalformedEvent)
	}
	if h.EventType == "" {
		return Event{}, fmt.Errorf("%w: missing eventType", ErrMalformedEvent)
	}

	return Event{
		Type:    h.EventType,
		RoomID:  h.RoomID,
		UserID:  h.UserID,
		Payload: compact.Bytes(),
	}, nil
}

// EventDispatcher delivers a decoded event to the subscribers of its room and
// reports how many subscribers accepted it.
type EventDispatcher interface {
	DispatchEvent(event Event) int
}

// NewEvent builds an event whose payload carries the header fields plus
// extra. Header fields win over keys of the same name in extra.
func NewEvent(eventType, roomID, userID string, extra map[string]any) (Event, error) {
	body := make(map[string]any, len(extra)+3)
	for k, v := range extra {
		body[k] = v
	}
	body["eventType"] = eventType
	body["roomId"] = roomID
	if userID != "" {
		body["userId"] = userID
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return Event{}, fmt.Errorf("encode event: %w", err)
	}
	return DecodeEvent(raw)
}

// EventPublisher sends an event to the broker.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event Event) error
}
