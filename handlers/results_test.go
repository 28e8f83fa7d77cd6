package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gateway-service/store"
)

type fixedStats struct{ rooms, subscribers int }

func (f fixedStats) Stats() (int, int) { return f.rooms, f.subscribers }

type brokenStore struct{}

func (brokenStore) IncrementEvent(context.Context, string) error { return nil }
func (brokenStore) GetEventCounts(context.Context) (map[string]int64, error) {
	return nil, errors.New("redis down")
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Gateway is running", rec.Body.String())
}

func TestStatsHandler(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.IncrementEvent(context.Background(), "USER_JOINED"))
	require.NoError(t, s.IncrementEvent(context.Background(), "USER_JOINED"))

	h := NewStatsHandler(fixedStats{rooms: 2, subscribers: 3}, s, zap.NewNop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Rooms)
	assert.Equal(t, 3, body.Subscribers)
	assert.Equal(t, map[string]int64{"USER_JOINED": 2}, body.Events)
}

func TestStatsHandler_StoreError(t *testing.T) {
	h := NewStatsHandler(fixedStats{}, brokenStore{}, zap.NewNop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "wildcard", allowed: []string{"*"}, origin: "http://any.test", want: true},
		{name: "listed", allowed: []string{"http://app.test"}, origin: "HTTP://APP.TEST", want: true},
		{name: "not listed", allowed: []string{"http://app.test"}, origin: "http://evil.test", want: false},
		{name: "no origin header", allowed: []string{"http://app.test"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, CheckOrigin(tt.allowed)(req))
		})
	}
}
