package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gateway-service/protocol"
)

var (
	ErrSubscriberClosed = errors.New("subscriber closed")
	ErrSlowSubscriber   = errors.New("subscriber buffer full")
)

// outbox is a bounded FIFO of encoded frames plus a close signal. push never
// blocks.
type outbox struct {
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

func newOutbox(size int) *outbox {
	return &outbox{
		queue: make(chan []byte, size),
		done:  make(chan struct{}),
	}
}

func (o *outbox) push(frame []byte) error {
	select {
	case <-o.done:
		return ErrSubscriberClosed
	default:
	}

	select {
	case o.queue <- frame:
		return nil
	case <-o.done:
		return ErrSubscriberClosed
	default:
		return ErrSlowSubscriber
	}
}

func (o *outbox) close() {
	o.once.Do(func() { close(o.done) })
}

// FrameWriter is the part of *websocket.Conn the write pump uses.
type FrameWriter interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// WebsocketClient is a duplex Subscriber wrapping a gorilla/websocket
// connection. Frames are written by WritePump, which owns the connection.
type WebsocketClient struct {
	id   string
	conn FrameWriter
	*outbox
}

// NewWebsocketClient creates a new client that wraps the given connection.
func NewWebsocketClient(id string, conn FrameWriter, buffer int) *WebsocketClient {
	return &WebsocketClient{id: id, conn: conn, outbox: newOutbox(buffer)}
}

func (c *WebsocketClient) ID() string { return c.id }
func (c *WebsocketClient) Kind() Kind { return Duplex }

// Deliver queues a {"event": label, "data": payload} frame.
func (c *WebsocketClient) Deliver(label string, payload json.RawMessage) error {
	frame, err := protocol.EncodeFrame(label, payload)
	if err != nil {
		return err
	}
	return c.push(frame)
}

// Close stops the write pump, which then closes the connection.
func (c *WebsocketClient) Close() error {
	c.close()
	return nil
}

// Done is closed once the client is closed.
func (c *WebsocketClient) Done() <-chan struct{} { return c.done }

// WritePump writes queued frames and periodic pings until the client is
// closed or a write fails. It closes the connection on return.
func (c *WebsocketClient) WritePump(writeWait, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.queue:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// StreamClient is a push-stream Subscriber. The SSE handler drains
// Messages and writes one data frame per payload.
type StreamClient struct {
	id string
	*outbox
}

func NewStreamClient(id string, buffer int) *StreamClient {
	return &StreamClient{id: id, outbox: newOutbox(buffer)}
}

func (c *StreamClient) ID() string { return c.id }
func (c *StreamClient) Kind() Kind { return PushStream }

// Deliver queues the payload. Push-stream frames carry no label.
func (c *StreamClient) Deliver(_ string, payload json.RawMessage) error {
	return c.push(payload)
}

func (c *StreamClient) Close() error {
	c.close()
	return nil
}

func (c *StreamClient) Messages() <-chan []byte { return c.queue }
func (c *StreamClient) Done() <-chan struct{}    { return c.done }
