package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Middleware(t *testing.T) {
	l := NewRateLimiter(0.001, 2)
	defer l.Stop()

	handler := l.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per client IP")
}

func TestRateLimiter_Evict(t *testing.T) {
	l := NewRateLimiter(1, 1)
	defer l.Stop()

	l.Allow("10.0.0.1")
	l.evict(time.Now().Add(time.Hour))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.limiters)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		remoteAddr string
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.168.1.1:1234", want: "192.168.1.1"},
		{name: "forwarded for ignored", xff: "203.0.113.5, 10.0.0.1", remoteAddr: "10.0.0.1:1234", want: "10.0.0.1"},
		{name: "no port", remoteAddr: "192.168.1.1", want: "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

func TestRateLimiter_IgnoresForwardedFor(t *testing.T) {
	l := NewRateLimiter(0.001, 1)
	defer l.Stop()

	handler := l.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	allowed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("1.2.3.%d", i))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed, "rotating X-Forwarded-For does not earn a fresh bucket")
}
