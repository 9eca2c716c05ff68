package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KawaiiKelp/ohaasa-bot/internal/app"
	"github.com/KawaiiKelp/ohaasa-bot/internal/infra/config"
	idb "github.com/KawaiiKelp/ohaasa-bot/internal/infra/database"
	"github.com/KawaiiKelp/ohaasa-bot/internal/infra/gemini"
	"github.com/KawaiiKelp/ohaasa-bot/internal/infra/logger"
	"github.com/KawaiiKelp/ohaasa-bot/internal/infra/ohaasa"
	"github.com/KawaiiKelp/ohaasa-bot/internal/infra/scheduler"
	"github.com/KawaiiKelp/ohaasa-bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	mainLogger := logger.Log.WithField("component", "main")
	mainLogger.WithField("environment", cfg.Environment).Info("Ohaasa bot starting")

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLogger.Info("Database connection established")

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Repository
	guildRepo := idb.NewPostgresGuildRepository(db)
	if err := guildRepo.EnsureSchema(rootCtx); err != nil {
		mainLogger.Fatalf("FATAL: Could not ensure database schema: %v", err)
	}
	mainLogger.Info("Guild repository initialized")

	// Initialize Registry
	registry := app.NewGuildRegistry(guildRepo, logger.Log.WithField("component", "registry"))
	if err := registry.Load(rootCtx); err != nil {
		mainLogger.Fatalf("FATAL: Could not load guild settings: %v", err)
	}

	// Initialize Pipeline
	fetcher := ohaasa.NewFetcher(cfg.OhaasaJSONURL, cfg.OhaasaPageURL, cfg.HTTPTimeout, logger.Log.WithField("component", "ohaasa"))
	translator := gemini.NewClient(cfg.GeminiAPIURL, cfg.HTTPTimeout, logger.Log.WithField("component", "gemini"))
	horoscopes := app.NewHoroscopeService(fetcher, translator, logger.Log.WithField("component", "horoscope"))

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Log.WithField("component", "telebot").WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID).WithField("chat_id", c.Chat().ID)
			}
			entry.Error("Telebot error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not create Telegram bot: %v", err)
	}

	// Initialize Dispatcher and Scheduler
	publisher := telegram.NewRankingPublisher(bot, cfg, logger.Log.WithField("component", "publisher"))
	dispatcher := app.NewDispatchService(horoscopes, publisher, logger.Log.WithField("component", "dispatcher"))
	postScheduler := scheduler.NewPostScheduler(registry, dispatcher, logger.Log.WithField("component", "scheduler"), cfg.TickInterval)
	postScheduler.Start()

	// Register Handlers
	telegram.RegisterGuildHandlers(rootCtx, bot, registry, dispatcher, logger.Log.WithField("component", "handlers"))
	telegram.RegisterBotCommands(bot, logger.Log.WithField("component", "handlers"))
	mainLogger.Info("Command handlers registered")

	// Warm today's cache for guilds that already have a credential so the
	// first scheduled post is served from memory.
	for _, g := range registry.Snapshot() {
		if g.GeminiAPIKey != "" {
			horoscopes.Warm(rootCtx, g.ID, g.GeminiAPIKey)
		}
	}

	mainLogger.Info("Application setup complete. Bot and scheduler are starting...")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	cancel()
	postScheduler.Stop()
	bot.Stop()
	mainLogger.Info("Application shut down gracefully")
}
