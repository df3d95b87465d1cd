package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/chis/pathdesigner/internal/logging"
)

// CorrelationIDMiddleware adds a correlation ID to each request.
// The ID is generated if not present in the X-Correlation-ID header.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = generateCorrelationID()
		}

		w.Header().Set("X-Correlation-ID", correlationID)

		ctx := logging.WithCorrelationID(r.Context(), correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLoggingMiddleware logs each request with its status and
// duration. The event stream is logged at debug to avoid spam.
func RequestLoggingMiddleware(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			entry := log.WithFields(map[string]interface{}{
				"method":         r.Method,
				"path":           r.URL.Path,
				"status":         wrapped.statusCode,
				"duration_ms":    duration.Milliseconds(),
				"correlation_id": GetCorrelationID(r.Context()),
			})

			switch {
			case wrapped.statusCode >= 500:
				entry.Error("%s %s -> %d", r.Method, r.URL.Path, wrapped.statusCode)
			case wrapped.statusCode >= 400:
				entry.Warn("%s %s -> %d", r.Method, r.URL.Path, wrapped.statusCode)
			case r.URL.Path == "/api/events" || r.URL.Path == "/health":
				entry.Debug("%s %s -> %d", r.Method, r.URL.Path, wrapped.statusCode)
			default:
				entry.Info("%s %s -> %d", r.Method, r.URL.Path, wrapped.statusCode)
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so SSE works through the
// logging wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer's
// deadline controls.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// GetCorrelationID retrieves the correlation ID from a request context.
func GetCorrelationID(ctx context.Context) string {
	return logging.CorrelationID(ctx)
}

// generateCorrelationID generates a random correlation ID.
func generateCorrelationID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// ChainMiddleware chains multiple middleware functions together.
// Middleware is applied in the order provided (first middleware wraps
// outermost).
func ChainMiddleware(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}
