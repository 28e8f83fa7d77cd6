package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gateway-service/hub"
	"gateway-service/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// WebSocketHandler is the duplex transport adapter. Each connection becomes
// a hub.WebsocketClient that joins and leaves rooms on request.
type WebSocketHandler struct {
	clients     hub.ClientManager
	broadcaster hub.MessageBroadcaster
	upgrader    websocket.Upgrader
	buffer      int
	logger      *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler instance
func NewWebSocketHandler(clients hub.ClientManager, b hub.MessageBroadcaster, checkOrigin func(*http.Request) bool, buffer int, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		clients:     clients,
		broadcaster: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		buffer: buffer,
		logger: logger,
	}
}

// ServeHTTP implements the http.Handler interface
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already wrote the error response.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := hub.NewWebsocketClient(uuid.New().String(), conn, h.buffer)
	logger := h.logger.With(zap.String("subscriber", client.ID()))
	logger.Info("client connected", zap.String("remote", r.RemoteAddr))

	go client.WritePump(writeWait, pingPeriod)

	defer func() {
		h.clients.UnsubscribeAll(client.ID())
		client.Close()
		conn.Close()
		logger.Info("client disconnected")
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("read error", zap.Error(err))
			}
			return
		}
		h.handleCommand(client, data, logger)
	}
}

func (h *WebSocketHandler) handleCommand(client *hub.WebsocketClient, data []byte, logger *zap.Logger) {
	cmd, err := protocol.ParseCommand(data)
	if err != nil {
		logger.Warn("ignoring client message", zap.Error(err))
		return
	}

	switch cmd := cmd.(type) {
	case protocol.JoinRoom:
		if err := h.clients.Subscribe(cmd.RoomID, client); err != nil {
			logger.Warn("join rejected", zap.String("room", cmd.RoomID), zap.Error(err))
			return
		}
		logger.Info("joined room", zap.String("room", cmd.RoomID))
	case protocol.LeaveRoom:
		h.clients.Unsubscribe(cmd.RoomID, client)
		logger.Info("left room", zap.String("room", cmd.RoomID))
	case protocol.HostChange:
		n := h.broadcaster.DispatchDuplex(protocol.EventHostChange, cmd.RoomID, protocol.HostChangePayload(cmd.NewHost))
		logger.Info("host changed",
			zap.String("room", cmd.RoomID), zap.String("newHost", cmd.NewHost), zap.Int("subscribers", n))
	}
}
