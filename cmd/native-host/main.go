// Command native-host serves the simulated native push SDK over NATS so a
// bridge-host in nats mode can drive it. A small HTTP surface lets operators
// push notifications and in-app messages at the device.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/SebastienMelki/pushbridge/internal/nats"
	"github.com/SebastienMelki/pushbridge/internal/observability"
	"github.com/SebastienMelki/pushbridge/internal/simulator"
	"github.com/SebastienMelki/pushbridge/internal/storage"
)

// Config holds all native host configuration.
type Config struct {
	// LogLevel is the log level (debug, info, warn, error).
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// LogFormat is the log format (json, text).
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTPAddr serves metrics, health and the device controls.
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":9092"`

	// DBPath is the simulator's SQLite database.
	DBPath string `env:"SIM_DB_PATH" envDefault:"pushbridge-native.db"`

	// Version is the native SDK version reported to the bridge.
	Version string `env:"SIM_VERSION" envDefault:"5.2.4"`

	// DenyPermission makes permission prompts fail.
	DenyPermission bool `env:"SIM_DENY_PERMISSION" envDefault:"false"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// NATS configuration.
	NATS nats.Config `envPrefix:""`
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

	logger.Info("starting native host",
		"nats_url", cfg.NATS.URL,
		"subject_prefix", cfg.NATS.Subjects.Prefix,
		"db_path", cfg.DBPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs, err := observability.New("native-host")
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

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	sim, err := simulator.New(db, simulator.Config{
		Version:        cfg.Version,
		DenyPermission: cfg.DenyPermission,
	}, logger)
	if err != nil {
		return err
	}
	defer sim.Close()

	natsClient, err := nats.NewClient(ctx, cfg.NATS, logger)
	if err != nil {
		return err
	}
	defer natsClient.Close()

	host, err := natsClient.Serve(ctx, sim, metrics)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", obs.MetricsHandler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := natsClient.HealthCheck(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	registerControls(mux, sim)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           observability.HTTPMetrics(metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		if srvErr := server.ListenAndServe(); srvErr != nil && srvErr != http.ErrServerClosed {
			logger.Error("http server error", "error", srvErr)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("native host started")
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)
	cancel()

	if err := host.Stop(); err != nil {
		logger.Error("host stop error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := natsClient.Drain(); err != nil {
		logger.Error("NATS drain error", "error", err)
	}

	logger.Info("native host stopped")
	return nil
}

// registerControls mounts the device control endpoints.
func registerControls(mux *http.ServeMux, sim *simulator.Native) {
	mux.HandleFunc("GET /device", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, sim.Snapshot())
	})

	mux.HandleFunc("POST /notifications", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID             string         `json:"id"`
			Title          string         `json:"title"`
			Body           string         `json:"body"`
			LaunchURL      string         `json:"launch_url"`
			AdditionalData map[string]any `json:"additional_data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		displayed := sim.ReceiveNotification(simulator.Notification{
			ID:             req.ID,
			Title:          req.Title,
			Body:           req.Body,
			LaunchURL:      req.LaunchURL,
			AdditionalData: req.AdditionalData,
		})
		writeJSON(w, http.StatusOK, map[string]bool{"displayed": displayed})
	})

	mux.HandleFunc("POST /notifications/{id}/open", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if err := sim.Open(r.PathValue("id"), q.Get("action_id"), q.Get("url")); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /in-app/{id}", func(w http.ResponseWriter, r *http.Request) {
		shown := sim.ShowInAppMessage(simulator.InAppMessage{ID: r.PathValue("id")})
		writeJSON(w, http.StatusOK, map[string]bool{"shown": shown})
	})

	mux.HandleFunc("POST /in-app/{id}/click", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		sim.ClickInAppMessage(simulator.InAppMessage{ID: r.PathValue("id")},
			q.Get("action_id"), q.Get("url"), q.Get("closing") == "true")
		w.WriteHeader(http.StatusNoContent)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
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
