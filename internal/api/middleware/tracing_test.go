package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(previous)
	})
	return recorder
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[string]string {
	out := map[string]string{}
	for _, kv := range span.Attributes() {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestTracingNamesSpanByRoute(t *testing.T) {
	recorder := installRecorder(t)

	handler := CorrelationID(nopLogger())(Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/events/V1StGXR8", nil)
	req.Header.Set("X-Request-ID", "req-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "GET /events/{id}", spans[0].Name())

	attrs := spanAttrs(spans[0])
	require.Equal(t, "GET", attrs["http.method"])
	require.Equal(t, "/events/{id}", attrs["http.route"])
	require.Equal(t, "V1StGXR8", attrs["event.id"])
	require.Equal(t, "200", attrs["http.status_code"])
	require.Equal(t, "req-123", attrs["request_id"])
}

func TestTracingStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   codes.Code
	}{
		{name: "ok", status: http.StatusOK, want: codes.Unset},
		{name: "not found", status: http.StatusNotFound, want: codes.Unset},
		{name: "store failure", status: http.StatusInternalServerError, want: codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := installRecorder(t)
			handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/events", nil))

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			require.Equal(t, tt.want, spans[0].Status().Code)
			require.Equal(t, "POST /events", spans[0].Name())
		})
	}
}

func TestTracingContinuesIncomingTrace(t *testing.T) {
	recorder := installRecorder(t)
	previous := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(previous) })

	handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext().TraceID().String())
	require.Equal(t, "00f067aa0ba902b7", spans[0].Parent().SpanID().String())
}

func TestRequestScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	require.Equal(t, "http", requestScheme(req))

	req.Header.Set("X-Forwarded-Proto", "https")
	require.Equal(t, "https", requestScheme(req))
}
