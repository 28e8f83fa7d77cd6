package hub

import "encoding/json"

// Kind is the transport a subscriber is connected through.
type Kind int

const (
	// Duplex subscribers hold a persistent WebSocket and may join many rooms.
	Duplex Kind = iota
	// PushStream subscribers hold an SSE response and have at most one room.
	PushStream
)

func (k Kind) String() string {
	switch k {
	case Duplex:
		return "duplex"
	case PushStream:
		return "push-stream"
	default:
		return "unknown"
	}
}

// AllRooms is the room a push-stream subscriber joins when it wants every
// room's events.
const AllRooms = ""

// Subscriber is a client connection that can receive a pushed event.
// Implementations must be safe for concurrent use and must not block in
// Deliver.
type Subscriber interface {
	ID() string
	Kind() Kind
	Deliver(label string, payload json.RawMessage) error
	Close() error
}

// ClientManager defines the membership operations transport adapters use.
type ClientManager interface {
	Subscribe(roomID string, sub Subscriber) error
	Unsubscribe(roomID string, sub Subscriber)
	UnsubscribeAll(id string) int
}

// MemberLookup is the registry view the dispatcher needs: read the room and
// drop subscribers whose writes fail.
type MemberLookup interface {
	MembersOf(roomID string) []Subscriber
	UnsubscribeAll(id string) int
}

// MessageBroadcaster relays client-originated messages to the duplex
// members of a room.
type MessageBroadcaster interface {
	DispatchDuplex(label, roomID string, payload json.RawMessage) int
}
