package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/ivzakh/termkeeper/internal/bot/handlers"
	"github.com/ivzakh/termkeeper/internal/clock"
	"github.com/ivzakh/termkeeper/internal/database"
	"github.com/ivzakh/termkeeper/internal/repository"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	handlers *handlers.Handlers
	log      *logrus.Logger
}

func New(api *tgbotapi.BotAPI, db *database.DB, clk clock.Clock, notifier handlers.Notifier, log *logrus.Logger) *Bot {
	repos := &handlers.Repositories{
		User:         repository.NewUserRepository(db),
		Type:         repository.NewTransactionTypeRepository(db),
		Transaction:  repository.NewTransactionRepository(db, clk),
		Notification: repository.NewNotificationRepository(db),
	}

	return &Bot{
		api:      api,
		handlers: handlers.New(api, repos, clk, notifier, log),
		log:      log,
	}
}

func (b *Bot) Start(ctx context.Context) error {
	b.log.WithField("account", b.api.Self.UserName).Info("bot authorized")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handlers.HandleCallbackQuery(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil {
		return
	}

	if update.Message.IsCommand() {
		b.handlers.HandleCommand(ctx, update.Message)
		return
	}

	b.handlers.HandleMessage(ctx, update.Message)
}
