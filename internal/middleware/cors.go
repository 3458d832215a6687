// Package middleware holds the gateway's HTTP middleware.
package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/cors"

	"github.com/zhouzirui/pulse-chat/backend/pkg/logger"
)

// CORS allows the browser client to call the gateway with its workspace cookie.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	wildcard := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			wildcard = true
		}
	}

	opts := cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}
	// Credentials may not be combined with a literal "*"; echo the caller's origin instead.
	if wildcard {
		opts.AllowedOrigins = nil
		opts.AllowOriginFunc = func(*http.Request, string) bool { return true }
	}
	opts.AllowCredentials = true
	return cors.Handler(opts)
}

// CheckOrigin validates the Origin of a WebSocket handshake, which the CORS layer
// does not cover. Requests without Origin (non-browser clients) and same-host
// requests pass; otherwise the origin must be in allowedOrigins or the list must hold "*".
func CheckOrigin(allowedOrigins []string) func(*http.Request) bool {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, allowed := range allowedOrigins {
			if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
				return true
			}
		}
		logger.WithField("origin", origin).Warn("websocket origin rejected")
		return false
	}
}
