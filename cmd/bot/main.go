package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivzakh/termkeeper/internal/ai"
	"github.com/ivzakh/termkeeper/internal/api"
	"github.com/ivzakh/termkeeper/internal/bot"
	"github.com/ivzakh/termkeeper/internal/clock"
	"github.com/ivzakh/termkeeper/internal/config"
	"github.com/ivzakh/termkeeper/internal/database"
	"github.com/ivzakh/termkeeper/internal/logging"
	"github.com/ivzakh/termkeeper/internal/repository"
	"github.com/ivzakh/termkeeper/internal/scheduler"
	"github.com/ivzakh/termkeeper/internal/transport"
)

func main() {
	log := logging.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	if cfg.DatabaseURI == "" {
		log.Fatal("DATABASE_URI is required")
	}
	if cfg.TelegramToken == "" {
		log.Fatal("TELEGRAM_TOKEN is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("connected to database")

	if err := db.Migrate(ctx, log); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	typeRepo := repository.NewTransactionTypeRepository(db)
	if err := typeRepo.EnsureDefaults(ctx); err != nil {
		log.WithError(err).Fatal("failed to seed transaction types")
	}

	clk := clock.NewSystem(cfg.Timezone)

	var aiClient *ai.Client
	if cfg.AIAPIKey != "" {
		aiClient = ai.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
		log.WithField("model", cfg.AIModel).Info("AI client initialized")
	} else {
		log.Info("AI client not configured, analysis tool disabled")
	}

	tgAPI, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramToken, tgbotapi.APIEndpoint,
		&http.Client{Timeout: 10 * time.Second})
	if err != nil {
		log.WithError(err).Fatal("failed to create Telegram API")
	}

	notificationRepo := repository.NewNotificationRepository(db)
	transactionRepo := repository.NewTransactionRepository(db, clk)
	userRepo := repository.NewUserRepository(db)

	sched := scheduler.New(
		notificationRepo,
		transport.NewTelegramWithAPI(tgAPI, log),
		clk,
		log,
		cfg.TickPeriod,
	)
	sched.Start()
	defer sched.Stop()

	apiServer := api.New(api.Deps{
		Users:    userRepo,
		Types:    typeRepo,
		Records:  transactionRepo,
		AI:       aiClient,
		Notifier: sched,
		APIKey:   cfg.APIKey,
		Log:      log,
	})
	go func() {
		log.WithField("port", cfg.WebPort).Info("web server starting")
		if err := apiServer.Run(cfg.WebPort); err != nil {
			log.WithError(err).Fatal("web server failed")
		}
	}()

	b := bot.New(tgAPI, db, clk, sched, log)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	log.Info("starting bot")
	if err := b.Start(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Fatal("bot error")
	}
}
