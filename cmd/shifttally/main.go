package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"shifttally/internal/amqp"
	"shifttally/internal/bot"
	"shifttally/internal/config"
	"shifttally/internal/export"
	applog "shifttally/internal/log"
	"shifttally/internal/services"
	"shifttally/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: "bot"})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath, cfg.StorageTimeout)
	if err != nil {
		logger.Error("Failed to initialize repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// AMQP is optional: without it records still commit, only the async
	// export pipeline stays quiet.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	svc := services.NewTallyService(repo, amqpClient, cfg.Location())

	renderers := []export.Renderer{export.XLSXRenderer{}, export.PDFRenderer{}}
	tgBot, err := bot.New(cfg.BotToken, svc, repo, renderers, cfg.AdminIDs, logger)
	if err != nil {
		logger.Error("Failed to initialize Telegram bot", "error", err)
		os.Exit(1)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		tgBot.Stop()
	}()

	logger.Info("Starting shifttally bot",
		"timezone", cfg.Timezone,
		"admins", len(cfg.AdminIDs))
	tgBot.Start()

	logger.Info("Bot stopped gracefully")
}
