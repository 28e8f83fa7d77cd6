package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gateway-service/hub"
)

// SSEHandler is the push-stream transport adapter. GET ?room=<id> streams
// that room's events; without room it streams every room's events.
type SSEHandler struct {
	clients   hub.ClientManager
	heartbeat time.Duration
	buffer    int
	logger    *zap.Logger
}

func NewSSEHandler(clients hub.ClientManager, heartbeat time.Duration, buffer int, logger *zap.Logger) *SSEHandler {
	return &SSEHandler{clients: clients, heartbeat: heartbeat, buffer: buffer, logger: logger}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	client := hub.NewStreamClient(uuid.New().String(), h.buffer)
	logger := h.logger.With(zap.String("subscriber", client.ID()), zap.String("room", room))

	if err := h.clients.Subscribe(room, client); err != nil {
		logger.Error("stream subscribe failed", zap.Error(err))
		http.Error(w, "Failed to subscribe", http.StatusInternalServerError)
		return
	}
	defer func() {
		h.clients.Unsubscribe(room, client)
		client.Close()
		logger.Info("stream closed")
	}()

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := writeFrame(w, rc, ": connected\n\n"); err != nil {
		logger.Warn("stream write failed", zap.Error(err))
		return
	}
	logger.Info("stream opened")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done():
			return
		case payload := <-client.Messages():
			if err := writeFrame(w, rc, "data: "+string(payload)+"\n\n"); err != nil {
				logger.Warn("stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := writeFrame(w, rc, ": ping\n\n"); err != nil {
				logger.Debug("heartbeat failed", zap.Error(err))
				return
			}
		}
	}
}

func writeFrame(w http.ResponseWriter, rc *http.ResponseController, frame string) error {
	if _, err := fmt.Fprint(w, frame); err != nil {
		return err
	}
	return rc.Flush()
}
