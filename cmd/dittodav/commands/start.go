package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/internal/telemetry"
	"github.com/marmos91/dittodav/pkg/config"
	"github.com/marmos91/dittodav/pkg/server"
	"github.com/marmos91/dittodav/pkg/webdav"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the DittoDAV server",
	Long: `Start the DittoDAV server in the foreground.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/dittodav/config.yaml. Without any
config file the server serves a single in-memory share at "/".

Examples:
  # Start with the default config
  dittodav start

  # Start with custom config file
  dittodav start --config /etc/dittodav/config.yaml

  # Start with environment variable overrides
  DITTODAV_LOGGING_LEVEL=DEBUG dittodav start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Write the process ID to this file while running")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "dittodav",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "dittodav",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("DittoDAV - WebDAV over pluggable stores")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	metricsResult := config.InitializeMetrics(cfg)

	rt, err := config.Initialize(ctx, cfg, metricsResult)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("runtime close error", "error", err)
		}
	}()

	for _, name := range rt.Registry.ListShares() {
		share, err := rt.Registry.GetShare(name)
		if err != nil {
			continue
		}
		logger.Info("Share configured", "share", share.Name, "store", share.StoreName, "read_only", share.ReadOnly)
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	srv := server.NewServer(cfg.Server, rt.Registry, webdav.NewHandler(rt.Engine),
		server.WithShutdownTimeout(cfg.ShutdownTimeout))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if metricsResult.Server != nil {
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
		g.Go(func() error {
			return metricsResult.Server.Start(gctx)
		})
	} else {
		logger.Info("Metrics collection disabled")
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		return err
	}
	logger.Info("Server stopped")
	return nil
}
