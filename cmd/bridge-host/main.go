// Command bridge-host runs the push bridge outside a game engine. It pumps
// the main thread, serves metrics and a pending-call view, and talks to the
// native SDK either in-process (the simulator) or through a native-host over
// NATS.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/SebastienMelki/pushbridge/internal/native"
	"github.com/SebastienMelki/pushbridge/internal/nats"
	"github.com/SebastienMelki/pushbridge/internal/observability"
	"github.com/SebastienMelki/pushbridge/internal/simulator"
	"github.com/SebastienMelki/pushbridge/internal/storage"
	"github.com/SebastienMelki/pushbridge/pkg/bridge"
)

// Native transport modes.
const (
	modeSimulator = "simulator"
	modeNATS      = "nats"
)

// Config holds all bridge host configuration.
type Config struct {
	// LogLevel is the log level (debug, info, warn, error).
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// LogFormat is the log format (json, text).
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// MetricsAddr is the address for metrics, health and debug endpoints.
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9091"`

	// Mode selects the native transport: "simulator" or "nats".
	Mode string `env:"NATIVE_MODE" envDefault:"simulator"`

	// AppID is passed to Initialize.
	AppID string `env:"APP_ID" envDefault:"demo-app"`

	// BridgeConfig is an optional JSON bridge configuration.
	BridgeConfig string `env:"BRIDGE_CONFIG"`

	// PumpInterval is how often the main thread is pumped.
	PumpInterval time.Duration `env:"PUMP_INTERVAL" envDefault:"16ms"`

	// OrphanAge is the age after which pending calls are reported as orphans.
	OrphanAge time.Duration `env:"ORPHAN_AGE" envDefault:"1m"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Simulator configuration, used in simulator mode.
	Simulator SimulatorConfig `envPrefix:"SIM_"`

	// NATS configuration, used in nats mode.
	NATS nats.Config `envPrefix:""`
}

// SimulatorConfig configures the in-process native SDK.
type SimulatorConfig struct {
	DBPath         string `env:"DB_PATH" envDefault:"pushbridge-native.db"`
	Version        string `env:"VERSION" envDefault:"5.2.4"`
	DenyPermission bool   `env:"DENY_PERMISSION" envDefault:"false"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return err
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("starting bridge host",
		"log_level", cfg.LogLevel,
		"mode", cfg.Mode,
		"metrics_addr", cfg.MetricsAddr,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs, err := observability.New("bridge-host")
	if err != nil {
		return err
	}
	defer func() {
		if shutErr := obs.Shutdown(context.Background()); shutErr != nil {
			logger.Error("observability shutdown error", "error", shutErr)
		}
	}()

	metrics, err := obs.NewMetrics()
	if err != nil {
		return err
	}

	bridgeCfg := bridge.Config{}
	if cfg.BridgeConfig != "" {
		parsed, err := bridge.ConfigFromJSON(cfg.BridgeConfig)
		if err != nil {
			return err
		}
		bridgeCfg = *parsed
	}

	transport, health, closeTransport, err := openTransport(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	b, err := bridge.New(transport, bridgeCfg, bridge.WithLogger(logger), bridge.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer b.Close()

	b.RegisterErrorCallback(bridge.ErrorCallbackFunc(func(code, message string, severity int) {
		logger.Warn("bridge error", "code", code, "message", message, "severity", bridge.ErrorSeverity(severity))
	}))

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		if err := b.Run(ctx, cfg.PumpInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("main thread stopped", "error", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", obs.MetricsHandler())
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := health(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsMux.HandleFunc("/debug/pending", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"pending": b.PendingCalls(),
			"orphans": b.Orphans(cfg.OrphanAge),
		})
	})
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           observability.HTTPMetrics(metrics)(metricsMux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting metrics server", "addr", cfg.MetricsAddr)
		if srvErr := metricsServer.ListenAndServe(); srvErr != nil && srvErr != http.ErrServerClosed {
			logger.Error("metrics server error", "error", srvErr)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := start(ctx, b, cfg.AppID, logger); err != nil {
		return err
	}
	logger.Info("bridge host started", "app_id", cfg.AppID)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)
	cancel()
	<-pumpDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}

	if orphans := b.Orphans(0); len(orphans) > 0 {
		logger.Warn("shutting down with unanswered calls", "count", len(orphans))
	}
	logger.Info("bridge host stopped")
	return nil
}

// openTransport builds the native transport for cfg.Mode, with a health
// check and a cleanup func.
func openTransport(ctx context.Context, cfg Config, metrics *observability.Metrics, logger *slog.Logger) (native.Transport, func(context.Context) error, func(), error) {
	switch cfg.Mode {
	case modeSimulator:
		db, err := storage.NewDB(cfg.Simulator.DBPath)
		if err != nil {
			return nil, nil, nil, err
		}
		sim, err := simulator.New(db, simulator.Config{
			Version:        cfg.Simulator.Version,
			DenyPermission: cfg.Simulator.DenyPermission,
		}, logger)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		health := func(context.Context) error { return nil }
		cleanup := func() {
			sim.Close()
			if err := db.Close(); err != nil {
				logger.Error("database close error", "error", err)
			}
		}
		return sim, health, cleanup, nil

	case modeNATS:
		client, err := nats.NewClient(ctx, cfg.NATS, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		tr := client.Transport(metrics)
		cleanup := func() {
			tr.Close()
			if err := client.Drain(); err != nil {
				logger.Error("NATS drain error", "error", err)
			}
		}
		return tr, client.HealthCheck, cleanup, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown NATIVE_MODE %q", cfg.Mode)
	}
}

// start initializes the SDK and subscribes loggers to its event streams.
func start(ctx context.Context, b *bridge.Bridge, appID string, logger *slog.Logger) error {
	if _, err := b.Notifications.OnPermissionChanged(func(ev bridge.PermissionChangedEvent) {
		logger.Info("permission changed", "granted", ev.Permission)
	}); err != nil {
		return err
	}
	if _, err := b.Notifications.OnClicked(func(ev bridge.NotificationClickEvent) {
		logger.Info("notification clicked",
			"notification_id", ev.Notification.NotificationID,
			"action_id", ev.Result.ActionID,
		)
	}); err != nil {
		return err
	}
	if _, err := b.Notifications.OnForegroundWillDisplay(func(ev *bridge.WillDisplayEvent) {
		logger.Info("notification will display", "notification_id", ev.Notification.NotificationID)
	}); err != nil {
		return err
	}
	if _, err := b.User.PushSubscription.OnChanged(func(ev bridge.PushSubscriptionChangedEvent) {
		logger.Info("push subscription changed", "id", ev.Current.ID, "opted_in", ev.Current.OptedIn)
	}); err != nil {
		return err
	}

	if err := b.Initialize(ctx, appID); err != nil {
		return err
	}

	b.Notifications.RequestPermission(ctx, false).OnComplete(func(granted bool, err error) {
		if err != nil {
			logger.Warn("permission request failed", "error", err)
			return
		}
		logger.Info("permission request answered", "granted", granted)
	})
	return nil
}

// setupLogger creates a logger based on configuration.
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
