package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"gateway-service/store"
)

// HealthHandler answers the root health check regardless of backend or
// broker state.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Gateway is running"))
}

// RoomStats reports registry size.
type RoomStats interface {
	Stats() (rooms, subscribers int)
}

type statsResponse struct {
	Rooms       int              `json:"rooms"`
	Subscribers int              `json:"subscribers"`
	Events      map[string]int64 `json:"events"`
}

// StatsHandler handles HTTP requests for gateway statistics
type StatsHandler struct {
	rooms  RoomStats
	store  store.EventStore
	logger *zap.Logger
}

// NewStatsHandler creates a new StatsHandler instance
func NewStatsHandler(rooms RoomStats, s store.EventStore, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{rooms: rooms, store: s, logger: logger}
}

// ServeHTTP implements the http.Handler interface
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.GetEventCounts(r.Context())
	if err != nil {
		h.logger.Warn("failed to get event counts", zap.Error(err))
		http.Error(w, "Failed to get stats", http.StatusInternalServerError)
		return
	}

	rooms, subscribers := h.rooms.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statsResponse{Rooms: rooms, Subscribers: subscribers, Events: counts})
}
