package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/namelens/relay/internal/config"
	errwrap "github.com/namelens/relay/internal/errors"
	"github.com/namelens/relay/internal/observability"
	"github.com/namelens/relay/internal/server"
	"github.com/namelens/relay/internal/server/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run relay as an HTTP sidecar",
	Long: `Start the HTTP sidecar. Services POST calls to /v1/dispatch and relay
sends them through one shared rate limiter and retry policy.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload the config file (logging level only; restart for dispatch changes)`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "server host (defaults to server.host)")
	serveCmd.Flags().IntP("port", "p", 0, "server port (defaults to server.port)")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func buildInfo() handlers.BuildInfo {
	return handlers.BuildInfo{
		Name:      appName,
		Version:   versionInfo.Version,
		Commit:    versionInfo.Commit,
		BuildDate: versionInfo.BuildDate,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// Flags bound after initConfig ran, so reload to pick them up.
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return errwrap.WrapConfigInvalid(cmd.Context(), err, "invalid configuration")
	}

	observability.InitServerLogger(appName, cfg.Logging.Level)

	d, err := newDispatcher(cfg, "sidecar")
	if err != nil {
		return errwrap.WrapConfigInvalid(cmd.Context(), err, "dispatcher initialization failed")
	}

	hm := handlers.NewHealthManager(versionInfo.Version)
	hm.RegisterChecker("config", handlers.CheckerFunc(func(context.Context) error {
		if config.GetConfig() == nil {
			return errwrap.NewConfigInvalidError("config not loaded")
		}
		return nil
	}))

	opts := server.Options{
		Dispatcher: d,
		Health:     hm,
		Build:      buildInfo(),
		AdminToken: cfg.Server.AdminToken,
	}
	if cfg.Metrics.Enabled {
		enableMetrics()
		opts.Metrics = observability.MetricsHandler()
	}
	srv := server.New(cfg.Server, opts)

	observability.ServerLogger.Info("Initializing server",
		zap.String("version", versionInfo.Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("max_requests_per_window", cfg.Dispatch.MaxRequestsPerWindow),
		zap.Duration("window", cfg.Dispatch.Window),
		zap.Int("max_retries", cfg.Dispatch.MaxRetries))

	// Shutdown handlers run LIFO: the HTTP server drains before the logger flushes.
	signals.OnShutdown(func(ctx context.Context) error {
		if err := observability.ServerLogger.Sync(); err != nil {
			observability.ServerLogger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}
		observability.ServerLogger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(ctx context.Context) error {
		observability.ServerLogger.Info("Received SIGHUP: reloading config")
		v := viper.GetViper()
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				observability.ServerLogger.Info("No config file found - keeping current configuration")
				return nil
			}
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}
		reloaded, err := config.Load(v)
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}
		observability.InitServerLogger(appName, reloaded.Logging.Level)
		observability.ServerLogger.Info("Configuration reloaded", zap.String("file", v.ConfigFileUsed()))
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		observability.ServerLogger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 2)
	go func() {
		errChan <- srv.Start()
	}()
	go func() {
		if err := signals.Listen(cmd.Context()); err != nil {
			observability.ServerLogger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		return errwrap.WrapInternal(cmd.Context(), err, "server error")
	}
	return nil
}
