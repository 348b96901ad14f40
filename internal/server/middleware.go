package server

import (
	"net/http"
	"strings"
	"time"
)

// bypassPaths never require the proxy API key, mirroring
// original_source/server/core/middleware.py's health-check/favicon bypass.
var bypassPaths = map[string]bool{
	"/health":      true,
	"/favicon.ico": true,
}

// authenticate enforces the shared-secret check described in spec.md §4.8:
// ?key=, x-api-key, Authorization: Bearer, x-proxy-key, first match wins.
// When no secret is configured at all, every request is allowed through —
// the "legacy/insecure" mode the original proxy falls back to.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bypassPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		secret := s.cfg.Server.ProxyAPIKey
		if secret == "" {
			next.ServeHTTP(w, r)
			return
		}

		if clientKey(r) == secret {
			next.ServeHTTP(w, r)
			return
		}

		writeError(w, http.StatusUnauthorized, "authentication_error",
			"Invalid or missing Proxy API Key. Please provide the correct key via x-api-key header or ?key= query parameter.")
	})
}

func clientKey(r *http.Request) string {
	if key := r.URL.Query().Get("key"); key != "" {
		return key
	}
	if key := r.Header.Get("x-api-key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			return strings.TrimSpace(auth[len("bearer "):])
		}
		return auth
	}
	if key := r.Header.Get("x-proxy-key"); key != "" {
		return key
	}
	return ""
}

// statusRecorder captures the status code a handler wrote, since
// http.ResponseWriter doesn't expose it after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// withMetrics records every request's method/path/status/duration to the
// prometheus collector.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.collector.ObserveHTTPRequest(r.Method, r.URL.Path, statusLabel(rec.status), time.Since(start))
	})
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// writeError writes a structured JSON error body, matching the
// {"error":{"type":...,"message":...}} shape spec.md §7 requires.
func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"type":    errType,
			"message": message,
		},
	})
}
