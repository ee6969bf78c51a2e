package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"imagesaver/domain/observability"
)

// HeaderXRequestID carries the request id in both directions
const HeaderXRequestID = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the id attached by RequestMetadata
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestMetadata reuses an incoming X-Request-ID or generates one
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderXRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.New().String()
		}
		w.Header().Set(HeaderXRequestID, requestID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Recovery turns a panic into a 500 response
func Recovery(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("Panic recovered",
						"request_id", RequestID(r.Context()),
						"panic", fmt.Sprintf("%v", rec),
						"stack", string(debug.Stack()))
					writeJSON(w, http.StatusInternalServerError, errorResponse{
						Status: "error",
						Error:  "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Logging logs request completion
func Logging(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []interface{}{
				"request_id", RequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
			}
			if status >= http.StatusInternalServerError {
				logger.Error("Request completed with error", fields...)
			} else {
				logger.Info("Request completed", fields...)
			}
		})
	}
}

// Metrics records request counts and latencies per route
func Metrics(metrics observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			tags := map[string]string{
				"method": r.Method,
				"route":  route,
				"status": strconv.Itoa(status),
			}
			metrics.IncrementCounter("http.requests", tags)
			metrics.RecordHistogram("http.request.duration_seconds", time.Since(start).Seconds(), map[string]string{
				"method": r.Method,
				"route":  route,
			})
		})
	}
}
