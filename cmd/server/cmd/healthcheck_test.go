package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// readyzStub answers every request with status and a health body.
func readyzStub(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if raw, ok := body.(string); ok {
			_, _ = w.Write([]byte(raw))
			return
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func withHealthcheckFlags(t *testing.T, retries int, delay time.Duration) {
	t.Helper()
	prevRetries, prevDelay, prevURL, prevFormat := healthcheckRetries, healthcheckRetryDelay, healthcheckURL, healthcheckFormat
	healthcheckRetries, healthcheckRetryDelay = retries, delay
	t.Cleanup(func() {
		healthcheckRetries, healthcheckRetryDelay = prevRetries, prevDelay
		healthcheckURL, healthcheckFormat = prevURL, prevFormat
	})
}

func TestPerformHealthCheck(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        any
		wantHealthy bool
		wantStatus  string
		wantErr     bool
	}{
		{
			name:        "store passing",
			status:      http.StatusOK,
			body:        HealthResponse{Status: "healthy", Checks: map[string]CheckResult{"store": {Status: "pass"}}},
			wantHealthy: true,
			wantStatus:  "healthy",
		},
		{
			name:       "store failing",
			status:     http.StatusServiceUnavailable,
			body:       HealthResponse{Status: "unhealthy", Checks: map[string]CheckResult{"store": {Status: "fail"}}},
			wantStatus: "unhealthy",
		},
		{
			name:       "draining",
			status:     http.StatusServiceUnavailable,
			body:       HealthResponse{Status: "shutting_down"},
			wantStatus: "shutting_down",
		},
		{
			name:       "200 with unhealthy body",
			status:     http.StatusOK,
			body:       HealthResponse{Status: "degraded"},
			wantStatus: "degraded",
		},
		{
			name:    "body is not json",
			status:  http.StatusOK,
			body:    "<html>",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := readyzStub(t, tt.status, tt.body)

			result := performHealthCheck(server.URL)

			require.Equal(t, tt.wantHealthy, result.IsHealthy)
			require.Equal(t, tt.status, result.StatusCode)
			require.GreaterOrEqual(t, result.LatencyMs, int64(0))
			if tt.wantErr {
				require.NotEmpty(t, result.Error)
				return
			}
			require.Equal(t, tt.wantStatus, result.Status)
		})
	}
}

func TestPerformHealthCheckAgainstRouter(t *testing.T) {
	api := newEventsAPI(t)

	result := performHealthCheck(api.URL + "/readyz")

	require.True(t, result.IsHealthy, "%+v", result)
	require.NotNil(t, result.Response)
	require.Equal(t, "pass", result.Response.Checks["store"].Status)
}

func TestPerformHealthCheckTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	prev := healthcheckTimeout
	healthcheckTimeout = 1
	t.Cleanup(func() { healthcheckTimeout = prev })

	result := performHealthCheck(server.URL)
	require.False(t, result.IsHealthy)
	require.NotEmpty(t, result.Error)
}

func TestPerformHealthCheckUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	result := performHealthCheck(url)
	require.False(t, result.IsHealthy)
	require.NotEmpty(t, result.Error)
}

func TestDetermineHealthCheckURL(t *testing.T) {
	tests := []struct {
		name, flag, port, want string
	}{
		{name: "flag wins", flag: "http://events.internal/readyz", port: "9000", want: "http://events.internal/readyz"},
		{name: "port from env", port: "9000", want: "http://localhost:9000/readyz"},
		{name: "default", want: "http://localhost:8080/readyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withHealthcheckFlags(t, 0, 0)
			healthcheckURL = tt.flag
			t.Setenv("SERVER_PORT", tt.port)

			require.Equal(t, tt.want, determineHealthCheckURL())
		})
	}
}

func TestPerformHealthCheckWithRetries(t *testing.T) {
	tests := []struct {
		name         string
		retries      int
		failFirst    int32
		wantHealthy  bool
		wantAttempts int32
	}{
		{name: "recovers on third attempt", retries: 3, failFirst: 2, wantHealthy: true, wantAttempts: 3},
		{name: "retries exhausted", retries: 2, failFirst: 10, wantAttempts: 3},
		{name: "no retries configured", retries: 0, failFirst: 1, wantAttempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withHealthcheckFlags(t, tt.retries, 5*time.Millisecond)

			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if attempts.Add(1) <= tt.failFirst {
					w.WriteHeader(http.StatusServiceUnavailable)
					_ = json.NewEncoder(w).Encode(HealthResponse{Status: "unhealthy"})
					return
				}
				_ = json.NewEncoder(w).Encode(HealthResponse{Status: "healthy"})
			}))
			t.Cleanup(server.Close)

			result := performHealthCheckWithRetries(server.URL)

			require.Equal(t, tt.wantHealthy, result.IsHealthy)
			require.Equal(t, tt.wantAttempts, attempts.Load())
			require.Equal(t, int(tt.wantAttempts)-1, result.RetryCount)
		})
	}
}

func TestOutputResult(t *testing.T) {
	result := HealthCheckResult{
		URL:        "http://localhost:8080/readyz",
		Status:     "healthy",
		StatusCode: http.StatusOK,
		IsHealthy:  true,
		LatencyMs:  42,
		Response: &HealthResponse{
			Status: "healthy",
			Checks: map[string]CheckResult{"store": {Status: "pass", Message: "document readable"}},
		},
	}

	tests := map[string][]string{
		"json":   {`"is_healthy": true`, `"latency_ms": 42`},
		"table":  {"URL", "STATUS", "store", "document readable"},
		"simple": {"http://localhost:8080/readyz: healthy (42ms)"},
	}

	for format, wants := range tests {
		t.Run(format, func(t *testing.T) {
			withHealthcheckFlags(t, 0, 0)
			healthcheckFormat = format

			var out bytes.Buffer
			require.NoError(t, outputResult(&out, result))
			for _, want := range wants {
				require.Contains(t, out.String(), want)
			}
		})
	}
}

func TestRunHealthcheckUnhealthyReturnsError(t *testing.T) {
	withHealthcheckFlags(t, 0, 0)
	healthcheckURL = readyzStub(t, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy"}).URL

	var out bytes.Buffer
	healthcheckCmd.SetOut(&out)
	t.Cleanup(func() { healthcheckCmd.SetOut(nil) })

	err := runHealthcheck(healthcheckCmd, nil)
	require.ErrorContains(t, err, "unhealthy")
}
