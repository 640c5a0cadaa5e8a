package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	// healthcheckCmd probes the readiness endpoint of a running server
	healthcheckCmd = &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /readyz endpoint.

This command is used by container HEALTHCHECK directives and deploy
scripts. It exits with code 0 if the server is healthy, non-zero otherwise.

Examples:
  # Check the local server (SERVER_PORT or 8080)
  server healthcheck

  # Check a specific URL, retrying while the server starts
  server healthcheck --url http://events.internal:8080/readyz --retries 5

  # Machine readable output
  server healthcheck --format json`,
		SilenceUsage: true,
		RunE:         runHealthcheck,
	}

	// Flags
	healthcheckTimeout    int
	healthcheckURL        string
	healthcheckRetries    int
	healthcheckRetryDelay time.Duration
	healthcheckFormat     string
)

func init() {
	healthcheckCmd.Flags().IntVar(&healthcheckTimeout, "timeout", 5, "timeout in seconds per attempt")
	healthcheckCmd.Flags().StringVar(&healthcheckURL, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/readyz)")
	healthcheckCmd.Flags().IntVar(&healthcheckRetries, "retries", 0, "number of retries after a failed attempt")
	healthcheckCmd.Flags().DurationVar(&healthcheckRetryDelay, "retry-delay", 2*time.Second, "delay between retries")
	healthcheckCmd.Flags().StringVar(&healthcheckFormat, "format", "simple", "output format (simple, table, json)")
}

// HealthResponse matches the readiness document served by /readyz.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

type CheckResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

// HealthCheckResult is the outcome of probing one URL.
type HealthCheckResult struct {
	URL        string          `json:"url"`
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code,omitempty"`
	IsHealthy  bool            `json:"is_healthy"`
	LatencyMs  int64           `json:"latency_ms"`
	Error      string          `json:"error,omitempty"`
	RetryCount int             `json:"retry_count"`
	Response   *HealthResponse `json:"response,omitempty"`
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	url := determineHealthCheckURL()
	result := performHealthCheckWithRetries(url)

	if err := outputResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.IsHealthy {
		if result.Error != "" {
			return fmt.Errorf("health check failed: %s", result.Error)
		}
		return fmt.Errorf("unhealthy: status=%s", result.Status)
	}
	return nil
}

func determineHealthCheckURL() string {
	if healthcheckURL != "" {
		return healthcheckURL
	}
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return fmt.Sprintf("http://localhost:%s/readyz", port)
}

// performHealthCheckWithRetries retries failed probes up to healthcheckRetries
// times, sleeping healthcheckRetryDelay in between.
func performHealthCheckWithRetries(url string) HealthCheckResult {
	var result HealthCheckResult
	for attempt := 0; attempt <= healthcheckRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(healthcheckRetryDelay)
		}
		result = performHealthCheck(url)
		result.RetryCount = attempt
		if result.IsHealthy {
			return result
		}
	}
	return result
}

func performHealthCheck(url string) HealthCheckResult {
	result := HealthCheckResult{URL: url, Status: "unknown"}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(healthcheckTimeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request: %v", err)
		return result
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	result.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			result.Error = fmt.Sprintf("timed out after %ds", healthcheckTimeout)
		} else {
			result.Error = err.Error()
		}
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		result.Error = fmt.Sprintf("invalid response: %v", err)
		return result
	}
	result.Response = &health
	result.Status = health.Status
	result.IsHealthy = resp.StatusCode == http.StatusOK && health.Status == "healthy"
	return result
}

func outputResult(w io.Writer, result HealthCheckResult) error {
	switch healthcheckFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "URL\tSTATUS\tCODE\tLATENCY\tRETRIES\n")
		fmt.Fprintf(tw, "%s\t%s\t%d\t%dms\t%d\n", result.URL, result.Status, result.StatusCode, result.LatencyMs, result.RetryCount)
		if result.Response != nil && len(result.Response.Checks) > 0 {
			fmt.Fprintf(tw, "\nCHECK\tSTATUS\tMESSAGE\n")
			names := make([]string, 0, len(result.Response.Checks))
			for name := range result.Response.Checks {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				check := result.Response.Checks[name]
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, check.Status, check.Message)
			}
		}
		return tw.Flush()
	default:
		if result.Error != "" {
			_, err := fmt.Fprintf(w, "%s: %s (%s)\n", result.URL, result.Status, result.Error)
			return err
		}
		_, err := fmt.Fprintf(w, "%s: %s (%dms)\n", result.URL, result.Status, result.LatencyMs)
		return err
	}
}
