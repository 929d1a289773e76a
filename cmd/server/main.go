package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/luxabot/service/alert"
	"github.com/brojonat/luxabot/service/config"
	"github.com/brojonat/luxabot/service/metrics"
	"github.com/brojonat/luxabot/service/mirror"
	"github.com/brojonat/luxabot/service/relay"
	"github.com/brojonat/luxabot/service/server"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any config value is present but invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.NewMetrics(nil)
	}

	// Mirrors are optional side channels. One that cannot connect at startup
	// is skipped; the relay runs without it.
	mirrors := setupMirrors(cfg, logger)
	fanout := mirror.NewFanout(mirrors, m, logger)
	defer func() {
		if err := fanout.Close(); err != nil {
			logger.Error("failed to close mirrors", "error", err)
		}
	}()

	formatter := &alert.Formatter{
		BotName:       cfg.BotName,
		ExplorerTxURL: cfg.ExplorerTxURL,
		Username:      cfg.DiscordUsername,
	}
	dispatcher := alert.NewDispatcher(alert.Config{
		WebhookURL:    cfg.DiscordWebhookURL,
		Timeout:       cfg.AlertTimeout,
		RatePerMinute: cfg.AlertRatePerMinute,
		Burst:         cfg.AlertBurst,
	}, formatter, nil, m, logger)

	r := relay.New(dispatcher, fanout, formatter.ExplorerLink, cfg.MirrorTimeout, m, logger)
	httpServer := server.New(cfg.ServerAddr, r, cfg.MaxBodyBytes, cfg.AlertTimeout+cfg.MirrorTimeout, m, logger)

	logger.Info("server initialized, all dependencies ready",
		"alert_timeout", cfg.AlertTimeout,
		"mirror_timeout", cfg.MirrorTimeout,
		"alert_rate_per_minute", cfg.AlertRatePerMinute,
		"mirrors", fanout.Len(),
		"metrics_enabled", cfg.MetricsEnabled,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		fanout.Close()
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout; in-flight webhooks finish their alert first
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.AlertTimeout+cfg.MirrorTimeout+30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			fanout.Close()
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

func setupMirrors(cfg *config.Config, logger *slog.Logger) []mirror.Mirror {
	var mirrors []mirror.Mirror

	if cfg.NATSURL != "" {
		nm, err := mirror.NewNATSMirror(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("nats mirror disabled", "url", cfg.NATSURL, "error", err)
		} else {
			mirrors = append(mirrors, nm)
			logger.Info("nats mirror enabled", "url", cfg.NATSURL, "stream", mirror.StreamName)
		}
	}

	if cfg.RedisAddr != "" {
		rm, err := mirror.NewRedisMirror(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKey, cfg.RedisMode)
		if err != nil {
			logger.Error("redis mirror disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			mirrors = append(mirrors, rm)
			logger.Info("redis mirror enabled", "addr", cfg.RedisAddr, "key", cfg.RedisKey, "mode", cfg.RedisMode)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		km, err := mirror.NewKafkaMirror(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logger.Error("kafka mirror disabled", "brokers", cfg.KafkaBrokers, "error", err)
		} else {
			mirrors = append(mirrors, km)
			logger.Info("kafka mirror enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		}
	}

	return mirrors
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
