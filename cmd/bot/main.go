// Package main contains the entrypoint for the Telegram relay bot application.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/pontebot/internal/bot"
	"github.com/edgard/pontebot/internal/bot/handlers"
	"github.com/edgard/pontebot/internal/bot/tasks"
	"github.com/edgard/pontebot/internal/config"
	"github.com/edgard/pontebot/internal/database"
	"github.com/edgard/pontebot/internal/gemini"
	"github.com/edgard/pontebot/internal/logger"
	"github.com/edgard/pontebot/internal/relay"
	"github.com/edgard/pontebot/internal/telegram"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop() // Ensure context cancellation is signaled before exit
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db,
// relay state, ai client, bot, scheduler), handles graceful shutdown, and
// returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.New(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	presence, correlation, limiter, tracker, err := warmRelayState(ctx, log, cfg, store)
	if err != nil {
		log.Error("Failed to warm relay state from database", "error", err)
		return 1
	}

	gemClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}

	// The default handler needs the router, and the router needs the bot for
	// its transport. Bind the handler late to break the cycle.
	var messageHandler tgbot.HandlerFunc
	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			if messageHandler != nil {
				messageHandler(ctx, b, update)
			}
		}),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	// Retrieve bot info and store it in the config for runtime use
	me, err := tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	cfg.Telegram.BotInfo = config.BotInfo{ID: me.ID, Username: me.Username, FirstName: me.FirstName}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	router := relay.NewRouter(
		log,
		cfg.Relay,
		cfg.Telegram.AdminID,
		telegram.NewTransport(tg, log),
		gemClient,
		store,
		presence,
		correlation,
		limiter,
		tracker,
	)

	hDeps := handlers.HandlerDeps{
		Logger: log,
		Config: cfg,
		Router: router,
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Router: router,
	}

	messageHandler = handlers.NewMessageHandler(hDeps)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, cfg, db, store, router, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx) // Run blocks until context is cancelled or an error occurs
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

// warmRelayState rebuilds the in-memory relay structures from the rows the
// previous run persisted, so restarts keep rate limiting, first-contact
// tracking, reply correlation, and operator presence intact.
func warmRelayState(
	ctx context.Context,
	log *slog.Logger,
	cfg *config.Config,
	store database.Store,
) (*relay.Presence, *relay.CorrelationMap, *relay.Limiter, *relay.Tracker, error) {
	limiter := relay.NewLimiter(cfg.Relay.FloodInterval)
	tracker := relay.NewTracker()
	correlation := relay.NewCorrelationMap()

	conversations, err := store.ListConversations(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	for _, conv := range conversations {
		limiter.Seed(conv.ChatID, conv.LastMessageAt)
		if conv.FirstContactShown {
			tracker.Seed(conv.ChatID)
		}
	}

	cutoff := time.Now().Add(-cfg.Relay.RecordRetention)
	records, err := store.ListRelayRecordsSince(ctx, cutoff)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	for _, rec := range records {
		if recErr := correlation.Record(rec.RelayedMessageID, rec.ChatID, rec.CreatedAt); recErr != nil {
			log.Warn("Skipping duplicate relay record during warm-up", "relayed_message_id", rec.RelayedMessageID)
		}
	}

	saved, err := store.GetPresence(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	// A fresh database starts the operator away, so first contacts get the
	// durable busy notice until the operator goes available.
	presence := relay.NewPresence(false, relay.TransitionNone)
	if saved != nil {
		presence = relay.NewPresence(saved.Available, relay.ParseTransition(saved.PendingTransition))
	}

	log.Info("Relay state warmed from database",
		"conversations", len(conversations),
		"relay_records", len(records),
		"presence_persisted", saved != nil)

	return presence, correlation, limiter, tracker, nil
}
