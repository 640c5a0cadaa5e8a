package telemetry

import (
	"context"
	"testing"

	"github.com/Togather-Foundation/events-api/internal/config"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{Enabled: false}, "test")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_NoneExporter(t *testing.T) {
	cfg := config.TracingConfig{Enabled: true, Exporter: "none", ServiceName: "events-api", SampleRate: 0.5}

	shutdown, err := InitTracing(context.Background(), cfg, "1.2.3")
	require.NoError(t, err)

	_, span := GetTracer("test").Start(context.Background(), "op")
	span.End()

	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TracingConfig
	}{
		{name: "sample rate", cfg: config.TracingConfig{Enabled: true, Exporter: "none", SampleRate: 2}},
		{name: "exporter", cfg: config.TracingConfig{Enabled: true, Exporter: "zipkin", SampleRate: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InitTracing(context.Background(), tt.cfg, "test")
			require.Error(t, err)
		})
	}
}

func TestSampler(t *testing.T) {
	require.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	require.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	require.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}
