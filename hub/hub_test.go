package hub

import (
	"encoding/json"
	"errors"
	"sync"
)

type delivery struct {
	label   string
	payload string
}

type mockSubscriber struct {
	id         string
	kind       Kind
	deliverErr error

	mu       sync.Mutex
	received []delivery
	closed   bool
}

func newMockSubscriber(id string, kind Kind) *mockSubscriber {
	return &mockSubscriber{id: id, kind: kind}
}

func (m *mockSubscriber) ID() string { return m.id }
func (m *mockSubscriber) Kind() Kind { return m.kind }

func (m *mockSubscriber) Deliver(label string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("closed")
	}
	if m.deliverErr != nil {
		return m.deliverErr
	}
	m.received = append(m.received, delivery{label: label, payload: string(payload)})
	return nil
}

func (m *mockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSubscriber) getReceived() []delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]delivery(nil), m.received...)
}

func (m *mockSubscriber) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func memberIDs(subs []Subscriber) []string {
	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.ID())
	}
	return ids
}
