package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// ipLimiter holds a rate limiter and the last time it was accessed.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP and evicts idle ones.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rps      float64
	burst    int
	idle     time.Duration
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst per client IP. Call Stop to end the eviction goroutine.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	l := &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		rps:      rps,
		burst:    burst,
		idle:     3 * time.Minute,
		stopCh:   make(chan struct{}),
	}
	go l.cleanup(time.Minute)
	return l
}

// Allow reports whether a request from ip may proceed.
func (l *RateLimiter) Allow(ip string) bool {
	now := time.Now()

	l.mu.Lock()
	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	return entry.limiter.Allow()
}

func (l *RateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *RateLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evict(time.Now())
		case <-l.stopCh:
			return
		}
	}
}

func (l *RateLimiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > l.idle {
			delete(l.limiters, ip)
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientIP(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP keys the bucket on the connection's peer address. X-Forwarded-For
// is client controlled and is not consulted.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
