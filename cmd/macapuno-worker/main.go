package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"macapuno/internal/amqp"
	"macapuno/internal/backup"
	gsheet "macapuno/internal/backup/google"
	mem "macapuno/internal/backup/memory"
	"macapuno/internal/config"
	"macapuno/internal/kv/sqlite"
	"macapuno/internal/store"
	"macapuno/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting macapuno-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The worker reads the same database file the server writes; a
	// memory kv backend would never see those writes.
	if cfg.KVBackend != "sqlite" {
		logger.Error("Worker requires the sqlite kv backend", "kv_backend", cfg.KVBackend)
		os.Exit(1)
	}

	kvStore, err := sqlite.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open SQLite store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer kvStore.Close()

	entries := store.New(ctx, kvStore)
	if !entries.Available() {
		logger.Error("Entry storage unavailable")
		os.Exit(1)
	}

	// Choose the mirror backend. Memory keeps a per-process copy, which
	// is enough for local development; sheets mirrors to a spreadsheet.
	var (
		writer  backup.EntryWriter
		remover backup.EntryRemover
	)
	switch cfg.BackupBackend {
	case "sheets":
		cli, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		writer, remover = cli, cli
		logger.Info("Initialized Google Sheets backend", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	default:
		st := mem.New()
		writer, remover = st, st
		logger.Info("Initialized memory backend")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	w := worker.NewBackupWorker(entries, writer, remover, cfg.BackupBatchSize)

	// On startup, mirror anything written while the worker was down.
	if err := w.StartupBackfill(ctx); err != nil {
		logger.Error("Startup backfill failed", "error", err)
		// Don't exit - the periodic sweep retries
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeEntryEvents(ctx, func(msg *amqp.EntryEventMessage) error {
			return w.HandleEvent(ctx, msg)
		})
	})

	// Periodic sweep for events lost between broker and worker.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.BackupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.ProcessPending(ctx); err != nil {
					logger.Error("Periodic backup sweep failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
