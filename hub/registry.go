package hub

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrRoomRequired = errors.New("duplex subscriber must name a room")
	ErrRoomAffinity = errors.New("push-stream subscriber already has a room")
)

// Registry tracks which subscribers belong to which rooms. It is the only
// shared mutable state in the gateway and is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex
	// rooms maps room ID to its members keyed by subscriber ID.
	rooms map[string]map[string]Subscriber
	// anyRoom holds push-stream subscribers that joined AllRooms.
	anyRoom map[string]Subscriber
	// joined maps subscriber ID to the rooms it is in, for UnsubscribeAll.
	joined map[string]map[string]struct{}
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		rooms:   make(map[string]map[string]Subscriber),
		anyRoom: make(map[string]Subscriber),
		joined:  make(map[string]map[string]struct{}),
		logger:  logger,
	}
}

// Subscribe adds sub to roomID. Subscribing twice is a no-op.
func (r *Registry) Subscribe(roomID string, sub Subscriber) error {
	if roomID == AllRooms && sub.Kind() != PushStream {
		return ErrRoomRequired
	}

	id := sub.ID()

	r.mu.Lock()
	rooms := r.joined[id]
	if _, ok := rooms[roomID]; ok {
		r.mu.Unlock()
		return nil
	}
	if sub.Kind() == PushStream && len(rooms) > 0 {
		r.mu.Unlock()
		return ErrRoomAffinity
	}

	if rooms == nil {
		rooms = make(map[string]struct{})
		r.joined[id] = rooms
	}
	rooms[roomID] = struct{}{}

	var members int
	if roomID == AllRooms {
		r.anyRoom[id] = sub
		members = len(r.anyRoom)
	} else {
		m, ok := r.rooms[roomID]
		if !ok {
			m = make(map[string]Subscriber)
			r.rooms[roomID] = m
		}
		m[id] = sub
		members = len(m)
	}
	r.mu.Unlock()

	r.logger.Debug("subscribed",
		zap.String("room", roomID), zap.String("subscriber", id),
		zap.Stringer("transport", sub.Kind()), zap.Int("members", members))
	return nil
}

// Unsubscribe removes sub from roomID if present.
func (r *Registry) Unsubscribe(roomID string, sub Subscriber) {
	r.mu.Lock()
	removed := r.remove(roomID, sub.ID())
	r.mu.Unlock()

	if removed {
		r.logger.Debug("unsubscribed", zap.String("room", roomID), zap.String("subscriber", sub.ID()))
	}
}

// UnsubscribeAll removes the subscriber with the given ID from every room
// and returns how many memberships were dropped.
func (r *Registry) UnsubscribeAll(id string) int {
	r.mu.Lock()
	rooms := make([]string, 0, len(r.joined[id]))
	for roomID := range r.joined[id] {
		rooms = append(rooms, roomID)
	}
	for _, roomID := range rooms {
		r.remove(roomID, id)
	}
	r.mu.Unlock()

	if len(rooms) > 0 {
		r.logger.Debug("unsubscribed from all rooms", zap.String("subscriber", id), zap.Int("rooms", len(rooms)))
	}
	return len(rooms)
}

// remove must be called with r.mu held.
func (r *Registry) remove(roomID, id string) bool {
	rooms, ok := r.joined[id]
	if !ok {
		return false
	}
	if _, ok := rooms[roomID]; !ok {
		return false
	}

	delete(rooms, roomID)
	if len(rooms) == 0 {
		delete(r.joined, id)
	}

	if roomID == AllRooms {
		delete(r.anyRoom, id)
		return true
	}
	if m, ok := r.rooms[roomID]; ok {
		delete(m, id)
		if len(m) == 0 {
			delete(r.rooms, roomID)
		}
	}
	return true
}

// MembersOf returns a snapshot of the subscribers that should receive an
// event for roomID: the room's members plus every AllRooms subscriber.
// The snapshot may be stale by the time the caller uses it.
func (r *Registry) MembersOf(roomID string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var room map[string]Subscriber
	if roomID != AllRooms {
		room = r.rooms[roomID]
	}

	members := make([]Subscriber, 0, len(room)+len(r.anyRoom))
	for _, sub := range room {
		members = append(members, sub)
	}
	// Duplex subscribers never join AllRooms and a push-stream subscriber
	// has one room, so the two sets are disjoint.
	for _, sub := range r.anyRoom {
		members = append(members, sub)
	}
	return members
}

// RoomsOf lists the rooms the subscriber is in, sorted. AllRooms appears as
// the empty string.
func (r *Registry) RoomsOf(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]string, 0, len(r.joined[id]))
	for roomID := range r.joined[id] {
		rooms = append(rooms, roomID)
	}
	sort.Strings(rooms)
	return rooms
}

// Stats returns the number of non-empty rooms and of subscribed clients.
func (r *Registry) Stats() (rooms, subscribers int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms), len(r.joined)
}
