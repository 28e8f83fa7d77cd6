package handlers

import (
	"net/http"
	"strings"
)

// CheckOrigin returns a gorilla/websocket CheckOrigin function accepting the
// given origins. "*" accepts any origin. Requests without an Origin header
// (non-browser clients) are always accepted.
func CheckOrigin(allowed []string) func(r *http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(origin, o) {
				return true
			}
		}
		return false
	}
}
