package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gateway-service/internal"
)

func TestDispatcher_DispatchEvent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	d := NewDispatcher(r, zap.NewNop())

	a := newMockSubscriber("a", Duplex)
	b := newMockSubscriber("b", Duplex)
	c := newMockSubscriber("c", Duplex)
	require.NoError(t, r.Subscribe("r1", a))
	require.NoError(t, r.Subscribe("r1", b))
	require.NoError(t, r.Subscribe("r2", c))

	payload := `{"eventType":"USER_LEFT","roomId":"r1","userId":"u9"}`
	n := d.DispatchEvent(internal.Event{
		Type:    "USER_LEFT",
		RoomID:  "r1",
		UserID:  "u9",
		Payload: json.RawMessage(payload),
	})

	assert.Equal(t, 2, n)
	for _, sub := range []*mockSubscriber{a, b} {
		got := sub.getReceived()
		require.Len(t, got, 1, "subscriber %s", sub.ID())
		assert.Equal(t, "USER_LEFT", got[0].label)
		assert.JSONEq(t, payload, got[0].payload)
	}
	assert.Empty(t, c.getReceived())
}

func TestDispatcher_FailedWriteIsolated(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	d := NewDispatcher(r, zap.NewNop())

	healthy := newMockSubscriber("healthy", Duplex)
	broken := newMockSubscriber("broken", Duplex)
	broken.deliverErr = errors.New("connection reset")
	require.NoError(t, r.Subscribe("r1", healthy))
	require.NoError(t, r.Subscribe("r1", broken))
	require.NoError(t, r.Subscribe("r2", broken))

	n := d.Dispatch("USER_JOINED", "r1", json.RawMessage(`{}`))

	assert.Equal(t, 1, n)
	assert.Len(t, healthy.getReceived(), 1)
	assert.True(t, broken.isClosed())
	assert.Empty(t, r.RoomsOf("broken"), "failed subscriber is removed from every room")
	assert.Equal(t, []string{"healthy"}, memberIDs(r.MembersOf("r1")))
}

func TestDispatcher_EmptyRoom(t *testing.T) {
	d := NewDispatcher(NewRegistry(zap.NewNop()), zap.NewNop())
	assert.Equal(t, 0, d.Dispatch("USER_JOINED", "nobody", json.RawMessage(`{}`)))
}

func TestDispatcher_AllRoomsSubscriber(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	d := NewDispatcher(r, zap.NewNop())
	all := newMockSubscriber("all", PushStream)
	require.NoError(t, r.Subscribe(AllRooms, all))

	d.Dispatch("A", "r1", json.RawMessage(`{"n":1}`))
	d.Dispatch("B", "r2", json.RawMessage(`{"n":2}`))

	got := all.getReceived()
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].label)
	assert.Equal(t, "B", got[1].label)
}

func TestDispatcher_DispatchDuplexSkipsPushStreams(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	d := NewDispatcher(r, zap.NewNop())
	ws := newMockSubscriber("ws", Duplex)
	room := newMockSubscriber("room-stream", PushStream)
	all := newMockSubscriber("all-stream", PushStream)
	require.NoError(t, r.Subscribe("r1", ws))
	require.NoError(t, r.Subscribe("r1", room))
	require.NoError(t, r.Subscribe(AllRooms, all))

	n := d.DispatchDuplex("hostChange", "r1", json.RawMessage(`{"newHost":"u5"}`))

	assert.Equal(t, 1, n)
	got := ws.getReceived()
	require.Len(t, got, 1)
	assert.Equal(t, "hostChange", got[0].label)
	assert.Empty(t, room.getReceived())
	assert.Empty(t, all.getReceived())
}

func TestDispatcher_PreservesOrderPerSubscriber(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	d := NewDispatcher(r, zap.NewNop())
	sub := NewStreamClient("s", 16)
	require.NoError(t, r.Subscribe("r1", sub))

	for i := 0; i < 10; i++ {
		d.Dispatch("TICK", "r1", json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i)))
	}

	for i := 0; i < 10; i++ {
		msg := <-sub.Messages()
		assert.JSONEq(t, fmt.Sprintf(`{"seq":%d}`, i), string(msg))
	}
}
