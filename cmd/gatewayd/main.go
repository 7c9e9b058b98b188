package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"gatewayd/internal/config"
	"gatewayd/internal/gateway"
	"gatewayd/internal/httpapi"
)

// modelRefreshInterval controls how often the router's model table is
// reconciled against the backend.
const modelRefreshInterval = 60 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath   string
		addr      string
		backend   string
		model     string
		logLevel  string
		cacheCap  int
		batchSize int
		batchWait int
		timeout   int
		threshold float64
	)

	root := &cobra.Command{
		Use:           "gatewayd",
		Short:         "Adaptive request gateway for local LLM inference backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if cfgPath != "" {
				loaded, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				loaded.ApplyDefaults()
				cfg = loaded
			}
			// Explicit flags win over the config file.
			if cmd.Flags().Changed("addr") || cfgPath == "" {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("backend") || cfgPath == "" {
				cfg.BackendURL = backend
			}
			if cmd.Flags().Changed("default-model") {
				cfg.DefaultModel = model
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("cache-capacity") {
				cfg.CacheCapacity = cacheCap
			}
			if cmd.Flags().Changed("max-batch-size") {
				cfg.MaxBatchSize = batchSize
			}
			if cmd.Flags().Changed("batch-wait-ms") {
				cfg.BatchWaitMs = batchWait
			}
			if cmd.Flags().Changed("backend-timeout-seconds") {
				cfg.BackendTimeoutSeconds = timeout
			}
			if cmd.Flags().Changed("acceptance-threshold") {
				cfg.AcceptanceThreshold = threshold
			}
			cfg.ApplyDefaults()
			return run(cfg)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", os.Getenv("GATEWAYD_CONFIG"), "Optional config file (.yaml/.json/.toml)")
	root.Flags().StringVar(&addr, "addr", envDefault("GATEWAYD_ADDR", config.DefaultAddr), "HTTP listen address, e.g. :11500")
	root.Flags().StringVar(&backend, "backend", envDefault("GATEWAYD_BACKEND", config.DefaultBackendURL), "Inference backend base URL")
	root.Flags().StringVar(&model, "default-model", os.Getenv("GATEWAYD_DEFAULT_MODEL"), "Model used when a request omits the model field")
	root.Flags().StringVar(&logLevel, "log-level", envDefault("GATEWAYD_LOG_LEVEL", "info"), "Log level: off|error|info|debug")
	root.Flags().IntVar(&cacheCap, "cache-capacity", config.DefaultCacheCapacity, "Response cache capacity in entries")
	root.Flags().IntVar(&batchSize, "max-batch-size", config.DefaultMaxBatchSize, "Coalescer flush size")
	root.Flags().IntVar(&batchWait, "batch-wait-ms", config.DefaultBatchWaitMs, "Coalescer flush timer in milliseconds")
	root.Flags().IntVar(&timeout, "backend-timeout-seconds", config.DefaultBackendTimeoutSeconds, "Per-call backend timeout in seconds")
	root.Flags().Float64Var(&threshold, "acceptance-threshold", config.DefaultAcceptanceThreshold, "Minimum router score required to override the requested model")

	return root
}

func run(cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)
	httpapi.SetLogger(logger)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)

	baseCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	httpapi.SetBaseContext(baseCtx)

	gw := gateway.New(cfg)
	if err := gw.DiscoverModels(baseCtx); err != nil {
		logger.Warn().Err(err).Msg("initial model discovery failed; continuing")
	}
	go refreshModels(baseCtx, gw, logger)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(gw)}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("backend", cfg.BackendURL).Msg("gatewayd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-baseCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	gw.Drain()
	return nil
}

// refreshModels keeps the router's model table in sync with the backend.
func refreshModels(ctx context.Context, gw *gateway.Gateway, logger zerolog.Logger) {
	ticker := time.NewTicker(modelRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := gw.DiscoverModels(ctx); err != nil {
				logger.Debug().Err(err).Msg("model refresh failed")
			}
		}
	}
}

func newLogger(level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	switch level {
	case "off":
		lvl = zerolog.Disabled
	case "error":
		lvl = zerolog.ErrorLevel
	case "debug":
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}
