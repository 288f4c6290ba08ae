package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"kinobot/internal/bot"
	"kinobot/internal/caption"
	"kinobot/internal/config"
	"kinobot/internal/engagement"
	"kinobot/internal/retrieval"
	"kinobot/internal/server"
	"kinobot/internal/storage"
	"kinobot/internal/telegram"
	"kinobot/internal/workflow"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Load configuration
	cfgPath := "configs/config.yml"
	if env := os.Getenv("KINOBOT_CONFIG"); env != "" {
		cfgPath = env
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Movie and user registry
	store := storage.NewStore(cfg.Storage.DataDir, logger)
	if err := store.Load(); err != nil {
		logger.Fatal("Failed to load registry", zap.Error(err))
	}
	if err := os.MkdirAll(cfg.Storage.DownloadsDir, 0o755); err != nil {
		logger.Fatal("Failed to create downloads directory", zap.Error(err))
	}

	// Telegram transport
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Fatal("Failed to initialize Telegram API", zap.Error(err))
	}
	transport := telegram.NewClient(api, logger)

	fullChannel := telegram.ParseChatRef(cfg.Telegram.FullChannel)
	previewChannel := telegram.ParseChatRef(cfg.Telegram.PreviewChannel)

	botUsername := cfg.Telegram.BotUsername
	if botUsername == "" {
		botUsername = api.Self.UserName
	}
	render := caption.NewHTML(botUsername, cfg.Telegram.PreviewChannel)

	// Core services
	engine := engagement.NewEngine(store, transport, fullChannel, previewChannel, logger)
	wf := workflow.NewManager(store, transport, render, fullChannel, previewChannel, cfg.Storage.DownloadsDir, logger)
	rh := retrieval.NewHandler(store, transport, render, fullChannel, previewChannel, logger)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run Telegram bot in a goroutine
	b := bot.NewBot(api, cfg, store, transport, render, engine, wf, rh, logger)
	go func() {
		if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Telegram bot failed", zap.Error(err))
		}
	}()

	// Initialize and run the monitoring server
	srv := server.NewServer(store, engine, logger)
	go func() {
		if err := srv.Run(cfg.Server.Port); err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Application stopped.")
}
