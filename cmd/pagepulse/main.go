package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/saleops/pagepulse/internal/analyzer"
	"github.com/saleops/pagepulse/internal/api"
	"github.com/saleops/pagepulse/internal/config"
	"github.com/saleops/pagepulse/internal/events"
	"github.com/saleops/pagepulse/internal/gemini"
	"github.com/saleops/pagepulse/internal/runner"
	"github.com/saleops/pagepulse/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("pagepulse starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Gemini client
	if cfg.GeminiAPIKey == "" {
		slog.Error("GEMINI_API_KEY is required")
		os.Exit(1)
	}
	llm := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ModelTimeout)
	slog.Info("gemini client ready", "model", cfg.GeminiModel)

	// Analyzer
	an := analyzer.New(llm, slog.Default())

	// NATS (optional — cycles still run without event publishing)
	var pub runner.Publisher
	bus, err := events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Warn("NATS unavailable — running without events", "error", err)
	} else {
		pub = bus
		defer bus.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	// Runner — the batch pipeline
	run := runner.New(db, an, pub, runner.Options{
		BatchThreshold: cfg.BatchThreshold,
		WindowMax:      cfg.BatchWindowMax,
		Workers:        cfg.AnalyzeWorkers,
		ModelTimeout:   cfg.ModelTimeout,
	}, slog.Default())

	// On-demand analysis requests over the bus
	if bus != nil {
		if err := bus.Subscribe(events.SubjectAnalyzeRequest, run.HandleAnalyzeRequest); err != nil {
			slog.Error("failed to subscribe to analyze requests", "error", err)
			os.Exit(1)
		}
	}

	// Scheduled cycles
	var sched *cron.Cron
	if cfg.AnalyzeCron != "" && cfg.AnalyzeCron != "off" {
		sched = cron.New()
		_, err := sched.AddFunc(cfg.AnalyzeCron, func() {
			if _, err := run.RunCycle(ctx); err != nil {
				slog.Error("scheduled cycle failed", "error", err)
			}
		})
		if err != nil {
			slog.Error("invalid ANALYZE_CRON schedule", "schedule", cfg.AnalyzeCron, "error", err)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
		slog.Info("scheduler started", "schedule", cfg.AnalyzeCron)
	} else {
		slog.Warn("scheduler disabled — cycles run only on demand")
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, run, db, cfg.SessionGap, cfg.BatchThreshold, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("pagepulse ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("pagepulse stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
