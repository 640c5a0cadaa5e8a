package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// contextKey is unexported so no other package can collide with these keys.
type contextKey string

// RequestIDKey is the context key for the request correlation ID.
const RequestIDKey contextKey = "request_id"

// maxRequestIDLength caps client supplied IDs before they reach logs and
// response headers.
const maxRequestIDLength = 128

// CorrelationID assigns each request an ID and injects it into the logger.
//
// An X-Request-ID header from a proxy or load balancer is reused when it is
// non-empty and at most maxRequestIDLength bytes; otherwise a random UUID is
// generated. The ID is:
//   - echoed in the X-Request-ID response header
//   - stored in the context under RequestIDKey (see GetRequestID)
//   - attached as request_id to a logger placed in the context, so
//     zerolog.Ctx(r.Context()) in handlers and services logs with it
//
// Mount it outermost so every later middleware sees the ID.
func CorrelationID(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
			if requestID == "" || len(requestID) > maxRequestIDLength {
				requestID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", requestID)

			reqLogger := logger.With().Str("request_id", requestID).Logger()
			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = reqLogger.WithContext(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID extracts the request ID from context. It returns "" outside
// a request handled by CorrelationID.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
