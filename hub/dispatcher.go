package hub

import (
	"encoding/json"

	"go.uber.org/zap"

	"gateway-service/internal"
)

// Dispatcher fans an event out to the current members of a room.
type Dispatcher struct {
	members MemberLookup
	logger  *zap.Logger
}

func NewDispatcher(members MemberLookup, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{members: members, logger: logger}
}

// Dispatch delivers payload under label to every member of roomID and
// returns the number of successful deliveries. A subscriber whose delivery
// fails is removed from the registry and closed; the rest still receive the
// event.
func (d *Dispatcher) Dispatch(label, roomID string, payload json.RawMessage) int {
	return d.deliver(d.members.MembersOf(roomID), label, roomID, payload)
}

// DispatchDuplex is Dispatch restricted to duplex members. Push-stream
// subscribers only ever receive broker event payloads.
func (d *Dispatcher) DispatchDuplex(label, roomID string, payload json.RawMessage) int {
	var duplex []Subscriber
	for _, sub := range d.members.MembersOf(roomID) {
		if sub.Kind() == Duplex {
			duplex = append(duplex, sub)
		}
	}
	return d.deliver(duplex, label, roomID, payload)
}

func (d *Dispatcher) deliver(subs []Subscriber, label, roomID string, payload json.RawMessage) int {
	delivered := 0
	for _, sub := range subs {
		if err := sub.Deliver(label, payload); err != nil {
			d.logger.Warn("delivery failed, dropping subscriber",
				zap.String("room", roomID), zap.String("subscriber", sub.ID()),
				zap.Stringer("transport", sub.Kind()), zap.String("eventType", label), zap.Error(err))
			d.members.UnsubscribeAll(sub.ID())
			sub.Close()
			continue
		}
		delivered++
	}
	return delivered
}

// DispatchEvent implements internal.EventDispatcher.
func (d *Dispatcher) DispatchEvent(event internal.Event) int {
	return d.Dispatch(event.Type, event.RoomID, event.Payload)
}
