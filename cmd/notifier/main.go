package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/telebot.v3"

	"student_progress_notifier/internal/app"
	"student_progress_notifier/internal/domain/conversation"
	"student_progress_notifier/internal/domain/drafting"
	"student_progress_notifier/internal/domain/notification"
	"student_progress_notifier/internal/domain/progress"
	"student_progress_notifier/internal/infra/config"
	idb "student_progress_notifier/internal/infra/database"
	"student_progress_notifier/internal/infra/drafter"
	"student_progress_notifier/internal/infra/httpapi"
	"student_progress_notifier/internal/infra/logger"
	"student_progress_notifier/internal/infra/scheduler"
	"student_progress_notifier/internal/infra/snapshot"
	"student_progress_notifier/internal/infra/telegram"
)

func main() {
	fmt.Println("Student Progress Notifier starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg)
	mainLogger := logger.Get().WithField("component", "main")
	mainLogger.Infof("Configuration loaded. Storage: %s, Drafter: %s, Environment: %s", cfg.StorageBackend, cfg.DrafterBackend, cfg.Environment)

	// Initialize storage backend
	var notificationRepo notification.Repository
	var convStore conversation.Store
	if cfg.StorageBackend == config.StoragePostgres {
		db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			mainLogger.Fatalf("FATAL: Could not connect to database: %v", err)
		}
		defer db.Close()
		if err := idb.EnsureSchema(db); err != nil {
			mainLogger.Fatalf("FATAL: Could not ensure database schema: %v", err)
		}
		notificationRepo = idb.NewPostgresNotificationRepository(db)
		convStore = idb.NewPostgresConversationRepository(db)
		mainLogger.Info("Database connection established, Postgres repositories initialized.")
	} else {
		notificationRepo = idb.NewFileNotificationRepository(cfg.LedgerFile)
		mainLogger.WithField("ledger_file", cfg.LedgerFile).Info("File notification repository initialized.")
	}

	// Initialize drafter backend
	var messageDrafter drafting.Drafter
	if cfg.DrafterBackend == config.DrafterAgent {
		messageDrafter = drafter.NewRemoteAgentDrafter(cfg.AgentDraftURL, logger.Get().WithField("component", "remote_drafter"))
		mainLogger.WithField("agent_url", cfg.AgentDraftURL).Info("Remote agent drafter initialized.")
	} else {
		messageDrafter = drafter.NewTemplateDrafter()
		mainLogger.Info("Template drafter initialized.")
	}

	snapshotStore := snapshot.NewCSVStore(cfg.SnapshotDir)

	ledgerService := app.NewLedgerService(notificationRepo, logger.Get().WithField("component", "ledger_service"))
	ingestService := app.NewIngestService(
		snapshotStore,
		messageDrafter,
		convStore,
		ledgerService,
		logger.Get().WithField("component", "ingest_service"),
		progress.Config{
			InactivityThreshold: time.Duration(cfg.InactivityDays) * 24 * time.Hour,
			DropThreshold:       cfg.DropThreshold,
		},
	)
	mainLogger.Info("Core services initialized.")

	// Initialize Telegram review surface (optional, token-gated)
	var bot *telebot.Bot
	var reviewPublisher *telegram.ReviewPublisher
	botCtx, cancelBot := context.WithCancel(context.Background())
	defer cancelBot()
	if cfg.TelegramToken != "" {
		pref := telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				entry := logger.Get().WithField("component", "telebot")
				if c != nil && c.Sender() != nil {
					entry = entry.WithField("sender_id", c.Sender().ID)
				}
				entry.WithError(err).Error("Telegram handler error")
			},
		}
		bot, err = telebot.NewBot(pref)
		if err != nil {
			mainLogger.Fatalf("FATAL: Could not create Telegram bot: %v", err)
		}

		reviewPublisher = telegram.NewReviewPublisher(bot, cfg.ReviewerTelegramID, logger.Get().WithField("component", "review_publisher"))
		deliveryService := app.NewDeliveryService(
			ledgerService,
			telegram.NewTelebotAdapter(bot),
			logger.Get().WithField("component", "delivery_service"),
		)
		telegram.RegisterReviewHandlers(botCtx, bot, ledgerService, deliveryService, cfg.ReviewerTelegramID, logger.Get().WithField("component", "telegram_handlers"))
		telegram.RegisterCommandHandlers(botCtx, bot, ingestService, ledgerService, reviewPublisher, cfg.ReviewerTelegramID, logger.Get().WithField("component", "telegram_handlers"))
		mainLogger.Info("Telegram review surface initialized.")
	} else {
		mainLogger.Info("TELEGRAM_TOKEN not set, review happens through the HTTP API only.")
	}

	// Initialize IngestScheduler
	var schedulerPublisher scheduler.Publisher
	if reviewPublisher != nil {
		schedulerPublisher = reviewPublisher
	}
	ingestScheduler := scheduler.NewIngestScheduler(
		ingestService,
		schedulerPublisher,
		logger.Get().WithField("component", "scheduler"),
		cfg.CronSpecIngest,
		cfg.SnapshotDir,
		cfg.IncludeUnflagged,
	)
	ingestScheduler.Start()

	// Initialize HTTP API
	apiHandler := httpapi.NewHandler(ingestService, ledgerService, logger.Get().WithField("component", "httpapi"))
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apiHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.Fatalf("FATAL: HTTP server failed: %v", err)
		}
	}()

	if bot != nil {
		go bot.Start()
	}

	mainLogger.Info("Application setup complete.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	ingestScheduler.Stop()
	if bot != nil {
		cancelBot()
		bot.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Error("HTTP server shutdown error")
	}
	mainLogger.Info("Application shut down gracefully.")
}
