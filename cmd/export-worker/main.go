package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"shifttally/internal/amqp"
	"shifttally/internal/config"
	"shifttally/internal/export"
	applog "shifttally/internal/log"
	"shifttally/internal/storage"
	"shifttally/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: "export-worker"})
	applog.SetDefault(logger)

	logger.Info("Starting export-worker")

	cfg := config.Load()
	// The worker has no Telegram surface; only the storage/AMQP/export
	// parts of the config matter here.
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath, cfg.StorageTimeout)
	if err != nil {
		logger.Error("Failed to initialize repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	renderers := []export.Renderer{export.XLSXRenderer{}, export.PDFRenderer{}}
	exportWorker := worker.NewExportWorker(repo, renderers, cfg.ExportDir, cfg.ExportInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeEntryRecorded(ctx, exportWorker.HandleEntryRecorded)
	})
	g.Go(func() error {
		return exportWorker.Run(ctx)
	})

	logger.Info("Export worker running",
		"export_dir", cfg.ExportDir,
		"interval", cfg.ExportInterval.String())

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Export worker failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Export worker stopped gracefully")
}
