package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Togather-Foundation/events-api/internal/api"
	"github.com/Togather-Foundation/events-api/internal/config"
	"github.com/Togather-Foundation/events-api/internal/domain/events"
	"github.com/Togather-Foundation/events-api/internal/metrics"
	"github.com/Togather-Foundation/events-api/internal/storage/jsonfile"
	"github.com/Togather-Foundation/events-api/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
	storePath  string
	storeWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the events HTTP server",
	Long: `Start the events HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (and --config file if provided)
- Open the JSON document, creating it with an empty events collection if missing
- Optionally reload the document when another process edits it (--watch)
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Keep data somewhere else and pick up manual edits
  server serve --store /var/lib/events/db.json --watch

  # Start with debug logging
  server serve --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
	serveCmd.Flags().StringVar(&storePath, "store", "", "path of the JSON document (default: db.json)")
	serveCmd.Flags().BoolVar(&storeWatch, "watch", false, "reload the document when it changes on disk")
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting events server")
	ctx = logger.WithContext(ctx)

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing init failed: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	store, err := jsonfile.Open(ctx, jsonfile.NewFileAdapter(cfg.Store.Path), logger, jsonfile.EventsCollection)
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	repo := jsonfile.NewEventRepository(store)
	if items, err := repo.List(ctx); err == nil {
		metrics.StoreRecords.WithLabelValues(jsonfile.EventsCollection).Set(float64(len(items)))
		logger.Info().Str("path", cfg.Store.Path).Int("events", len(items)).Msg("store opened")
	} else {
		logger.Warn().Err(err).Msg("events collection unreadable")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := api.NewRouter(ctx, cfg, logger, api.RouterDeps{
		Events:    events.NewService(repo),
		Store:     store,
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return serve(ctx, server, store, cfg, logger)
}

// serve runs the HTTP server and, when enabled, the store watcher until
// ctx is cancelled or one of them fails.
func serve(ctx context.Context, server *http.Server, store *jsonfile.Store, cfg config.Config, logger zerolog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Store.Watch {
		g.Go(func() error {
			if err := store.Watch(gctx); err != nil {
				return fmt.Errorf("store watch: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// loadConfig reads the config file and environment, then applies flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return config.Config{}, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}
	if storePath != "" {
		cfg.Store.Path = storePath
	}
	if storeWatch {
		cfg.Store.Watch = true
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
