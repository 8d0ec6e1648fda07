package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// DegradedHeader is set on every response while some collection has failed
// to reach storage.
const DegradedHeader = "X-Persistence-Degraded"

// RequestIDMiddleware adds a unique request ID to each request context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// LoggingMiddleware logs method, path, route, status, duration and request ID
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.InfoContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routePattern(r)),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", GetRequestID(r.Context())),
			)
		})
	}
}

// RequestRecorder receives one observation per served request.
type RequestRecorder interface {
	ObserveRequest(route, method string, status int, elapsed time.Duration)
}

func MetricsMiddleware(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			rec.ObserveRequest(routePattern(r), r.Method, wrapped.statusCode, time.Since(start))
		})
	}
}

// DegradedFlag reports whether persistence is currently lagging memory.
type DegradedFlag interface {
	PersistenceDegraded() bool
}

// DegradedMiddleware marks responses produced while persistence is
// degraded. The flag is read after the handler ran so a write that just
// failed is reflected in its own response.
func DegradedMiddleware(flag DegradedFlag) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(&degradedWriter{ResponseWriter: w, flag: flag}, r)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

type degradedWriter struct {
	http.ResponseWriter
	flag        DegradedFlag
	wroteHeader bool
}

func (dw *degradedWriter) WriteHeader(code int) {
	if !dw.wroteHeader {
		dw.wroteHeader = true
		if dw.flag.PersistenceDegraded() {
			dw.Header().Set(DegradedHeader, "true")
		}
	}
	dw.ResponseWriter.WriteHeader(code)
}

func (dw *degradedWriter) Write(b []byte) (int, error) {
	if !dw.wroteHeader {
		dw.WriteHeader(http.StatusOK)
	}
	return dw.ResponseWriter.Write(b)
}
