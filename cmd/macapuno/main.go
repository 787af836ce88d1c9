package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"macapuno/internal/amqp"
	"macapuno/internal/config"
	apphttp "macapuno/internal/http"
	"macapuno/internal/kv"
	kvmem "macapuno/internal/kv/memory"
	"macapuno/internal/kv/sqlite"
	"macapuno/internal/services"
	"macapuno/internal/store"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Choose the kv backend (default: sqlite). Memory holds nothing
	// across restarts and is meant for throwaway runs.
	var kvStore kv.Store
	switch cfg.KVBackend {
	case "memory":
		kvStore = kvmem.New()
		logger.Info("Initialized memory kv backend")
	default:
		st, err := sqlite.Open(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to open SQLite store", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		kvStore = st
		logger.Info("Initialized SQLite kv backend", "path", cfg.SQLiteDBPath)
	}
	defer kvStore.Close()

	entries := store.New(context.Background(), kvStore)
	if !entries.Available() {
		logger.Warn("Entry storage unavailable - serving degraded, mutations will fail")
	}

	// Event publishing is best effort: without a broker the API still
	// serves, and the periodic worker sweep catches up later.
	var publisher services.EventPublisher
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable - entry events will not be published", "error", err)
	} else {
		publisher = amqpClient
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	svc := services.NewEntryService(entries, publisher)
	defer svc.Close()

	srv := apphttp.NewServer(":"+cfg.Port, svc, entries)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting macapuno server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
