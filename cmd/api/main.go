// Command api is the CareMinder reminder-engine server.
//
// Usage:
//
//	careminder-api
//	API_PORT=8080 careminder-api
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/careloop/careminder/internal/api"
	"github.com/careloop/careminder/internal/cache"
	"github.com/careloop/careminder/internal/config"
	"github.com/careloop/careminder/internal/db"
	"github.com/careloop/careminder/internal/directory"
	"github.com/careloop/careminder/internal/listener"
	"github.com/careloop/careminder/internal/notifications"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Failed to resolve facility timezone", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Assemble the reminder engine: durable store, external directories,
	// log-backed delivery sink (real transports are external collaborators).
	dispatcher := notifications.NewDispatcher(notifications.NewLogSink(logger), logger)
	engine := notifications.New(notifications.Deps{
		Store:      notifications.NewPGStore(pool.Pool),
		Patients:   directory.NewPGPatientDirectory(pool.Pool),
		Appts:      directory.NewPGAppointmentBook(pool.Pool),
		Dispatcher: dispatcher,
		Location:   loc,
		Worker: notifications.WorkerOptions{
			Interval:        cfg.TickInterval,
			DispatchTimeout: cfg.DispatchTimeout,
			Retention:       time.Duration(cfg.RetentionDays) * 24 * time.Hour,
			RetentionSweep:  cfg.RetentionSweep,
		},
		Logger: logger,
	})

	// Bring stored schedules up to date, then start the delivery worker.
	if err := engine.ScheduleAll(ctx); err != nil {
		logger.Warn("Initial scheduling pass failed", "error", err)
	}
	engine.Start(ctx)
	defer engine.Stop()

	// Bridge appointment change events: LISTEN/NOTIFY feeds the channel,
	// the relay drives the engine.
	events := make(chan listener.Event, 64)
	go listener.Listen(ctx, cfg.DatabaseURL, events, logger)
	go listener.Relay(ctx, events, engine, logger)

	// Create router
	router := api.NewRouter(engine, pool.Pool, appCache, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting CareMinder Engine API",
			"addr", addr,
			"environment", cfg.Environment,
			"tick_interval", cfg.TickInterval)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	engine.Stop()
	logger.Info("Server stopped")
}
