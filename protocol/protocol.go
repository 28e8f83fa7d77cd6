// Package protocol defines the duplex (WebSocket) wire format. Every text
// frame is a JSON envelope {"event": label, "data": object} in both
// directions. Inbound labels form a closed command set; outbound labels are
// whatever event type the backend published.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound command labels, and the outbound label of host change rebroadcasts.
const (
	EventJoinRoom   = "joinRoom"
	EventLeaveRoom  = "leaveRoom"
	EventHostChange = "hostChange"
)

var (
	ErrInvalidEnvelope = errors.New("invalid message envelope")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingField    = errors.New("missing required field")
)

// Envelope is the frame shape on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Command is one of JoinRoom, LeaveRoom or HostChange.
type Command interface {
	command()
}

type JoinRoom struct {
	RoomID string
}

type LeaveRoom struct {
	RoomID string
}

type HostChange struct {
	RoomID  string
	NewHost string
}

func (JoinRoom) command()   {}
func (LeaveRoom) command()  {}
func (HostChange) command() {}

type commandData struct {
	RoomID  string `json:"roomId"`
	NewHost string `json:"newHost"`
}

// ParseCommand decodes a client frame into a Command.
func ParseCommand(frame []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	var data commandData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: %s data: %v", ErrInvalidEnvelope, env.Event, err)
		}
	}

	switch env.Event {
	case EventJoinRoom:
		if data.RoomID == "" {
			return nil, fmt.Errorf("%w: %s requires roomId", ErrMissingField, env.Event)
		}
		return JoinRoom{RoomID: data.RoomID}, nil
	case EventLeaveRoom:
		if data.RoomID == "" {
			return nil, fmt.Errorf("%w: %s requires roomId", ErrMissingField, env.Event)
		}
		return LeaveRoom{RoomID: data.RoomID}, nil
	case EventHostChange:
		if data.RoomID == "" || data.NewHost == "" {
			return nil, fmt.Errorf("%w: %s requires roomId and newHost", ErrMissingField, env.Event)
		}
		return HostChange{RoomID: data.RoomID, NewHost: data.NewHost}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Event)
	}
}

// EncodeFrame builds an outbound frame. payload must be valid JSON.
func EncodeFrame(label string, payload json.RawMessage) ([]byte, error) {
	return json.Marshal(Envelope{Event: label, Data: payload})
}

// HostChangePayload is the body rebroadcast to a room on a host change.
func HostChangePayload(newHost string) json.RawMessage {
	b, _ := json.Marshal(struct {
		NewHost string `json:"newHost"`
	}{NewHost: newHost})
	return b
}
