package middleware

import (
	"net/http"
	"strings"

	"github.com/Togather-Foundation/events-api/internal/metrics"
	"github.com/Togather-Foundation/events-api/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Togather-Foundation/events-api/internal/api"

// Tracing wraps each request in a server span named after its route
// template, so /events/abc and /events/xyz share one span name. Incoming
// W3C trace context is honoured. Mount it inside CorrelationID.
func Tracing(next http.Handler) http.Handler {
	tracer := telemetry.GetTracer(tracerName)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := metrics.RouteLabel(r.URL.Path)

		attrs := []attribute.KeyValue{
			semconv.HTTPMethod(r.Method),
			semconv.HTTPRoute(route),
			semconv.HTTPURL(r.URL.String()),
			semconv.HTTPScheme(requestScheme(r)),
			semconv.NetHostName(r.Host),
		}
		if route == "/events/{id}" {
			attrs = append(attrs, attribute.String("event.id", strings.TrimPrefix(r.URL.Path, "/events/")))
		}
		if requestID := GetRequestID(r.Context()); requestID != "" {
			attrs = append(attrs, attribute.String("request_id", requestID))
		}

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		rw := &responseWriter{ResponseWriter: w}
		next.ServeHTTP(rw, r.WithContext(ctx))

		status := rw.status
		if status == 0 {
			status = http.StatusOK
		}
		span.SetAttributes(semconv.HTTPStatusCode(status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	})
}

func requestScheme(r *http.Request) string {
	switch {
	case r.TLS != nil:
		return "https"
	case r.Header.Get("X-Forwarded-Proto") != "":
		return r.Header.Get("X-Forwarded-Proto")
	default:
		return "http"
	}
}
