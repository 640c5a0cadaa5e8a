package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/Togather-Foundation/events-api/internal/loadtest"
	"github.com/spf13/cobra"
)

var (
	loadtestURL       string
	loadtestProfile   string
	loadtestRPS       int
	loadtestDuration  time.Duration
	loadtestReadRatio float64
	loadtestNoRamp    bool
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Generate CRUD traffic against a running server",
	Long: `Generate list/get/create/update/delete traffic against a running server
and print latency and error statistics.

Profiles: light, medium, heavy, burst. --rps, --duration, --read-ratio and
--no-ramp adjust the chosen profile.

Examples:
  server loadtest --profile medium
  server loadtest --url http://staging:8080 --rps 40 --duration 30s --no-ramp`,
	Args: cobra.NoArgs,
	RunE: runLoadtest,
}

func init() {
	loadtestCmd.Flags().StringVar(&loadtestURL, "url", "http://localhost:8080", "base URL of the server to test")
	loadtestCmd.Flags().StringVar(&loadtestProfile, "profile", string(loadtest.ProfileLight), "load profile (light, medium, heavy, burst)")
	loadtestCmd.Flags().IntVar(&loadtestRPS, "rps", 0, "requests per second (overrides profile)")
	loadtestCmd.Flags().DurationVar(&loadtestDuration, "duration", 0, "steady-state duration, e.g. 30s (overrides profile)")
	loadtestCmd.Flags().Float64Var(&loadtestReadRatio, "read-ratio", -1, "share of reads between 0 and 1 (overrides profile)")
	loadtestCmd.Flags().BoolVar(&loadtestNoRamp, "no-ramp", false, "start and stop at full rate")
}

func loadtestConfig() (loadtest.ProfileConfig, error) {
	cfg, ok := loadtest.Profiles[loadtest.Profile(loadtestProfile)]
	if !ok {
		return loadtest.ProfileConfig{}, fmt.Errorf("unknown profile: %s", loadtestProfile)
	}
	if loadtestRPS > 0 {
		cfg.RequestsPerSecond = loadtestRPS
	}
	if loadtestDuration > 0 {
		cfg.Duration = loadtestDuration
	}
	if loadtestReadRatio >= 0 {
		cfg.ReadWriteRatio = loadtestReadRatio
	}
	if loadtestNoRamp {
		cfg.RampUpTime = 0
		cfg.RampDownTime = 0
	}
	return cfg, nil
}

func runLoadtest(cmd *cobra.Command, args []string) error {
	cfg, err := loadtestConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	stats, err := loadtest.New(loadtestURL, loadtest.WithOutput(out)).RunCustom(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, stats.Report())
	return nil
}
