package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// ProxyHandler forwards requests to the backend unchanged apart from the
// host, and turns a slow or unreachable backend into a 504.
type ProxyHandler struct {
	proxy   *httputil.ReverseProxy
	timeout time.Duration
	logger  *zap.Logger
}

func NewProxyHandler(target *url.URL, timeout time.Duration, logger *zap.Logger) *ProxyHandler {
	h := &ProxyHandler{timeout: timeout, logger: logger}
	h.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
		},
		ErrorHandler: h.handleError,
	}
	return h
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	h.proxy.ServeHTTP(w, r.WithContext(ctx))
}

func (h *ProxyHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	reason := "backend unreachable"
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(r.Context().Err(), context.DeadlineExceeded) {
		reason = "backend timeout"
	}
	h.logger.Warn("proxy request failed",
		zap.String("method", r.Method), zap.String("path", r.URL.Path),
		zap.String("reason", reason), zap.Error(err))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusGatewayTimeout)
	w.Write([]byte("Gateway Timeout: " + reason + "\n"))
}
