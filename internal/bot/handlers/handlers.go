package handlers

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/ivzakh/termkeeper/internal/clock"
	"github.com/ivzakh/termkeeper/internal/repository"
)

type Repositories struct {
	User         *repository.UserRepository
	Type         *repository.TransactionTypeRepository
	Transaction  *repository.TransactionRepository
	Notification *repository.NotificationRepository
}

// Notifier wakes the dispatch loop after a record write.
type Notifier interface {
	Notify()
}

type Handlers struct {
	api      *tgbotapi.BotAPI
	repos    *Repositories
	clock    clock.Clock
	notifier Notifier
	log      *logrus.Logger
}

func New(api *tgbotapi.BotAPI, repos *Repositories, clk clock.Clock, notifier Notifier, log *logrus.Logger) *Handlers {
	return &Handlers{
		api:      api,
		repos:    repos,
		clock:    clk,
		notifier: notifier,
		log:      log,
	}
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	fullName := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	if _, err := h.repos.User.Upsert(ctx, msg.From.ID, msg.From.UserName, fullName); err != nil {
		h.log.WithError(err).Error("failed to upsert user")
		return
	}

	switch msg.Command() {
	case "start":
		h.handleStart(msg)
	case "help":
		h.handleHelp(msg)
	case "add":
		h.handleAdd(ctx, msg)
	case "cancel":
		h.handleCancelDialog(msg)
	case "list":
		h.handleList(ctx, msg)
	case "find":
		h.handleFind(ctx, msg)
	case "done":
		h.handleSetStatus(ctx, msg, "completed")
	case "drop":
		h.handleSetStatus(ctx, msg, "cancelled")
	case "delete":
		h.handleDelete(ctx, msg)
	case "stats":
		h.handleStats(ctx, msg)
	case "types":
		h.handleTypes(ctx, msg)
	default:
		h.sendMessage(msg.Chat.ID, "Unknown command. Use /help to see what I can do.")
	}
}

func (h *Handlers) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	fullName := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	if _, err := h.repos.User.Upsert(ctx, msg.From.ID, msg.From.UserName, fullName); err != nil {
		h.log.WithError(err).Error("failed to upsert user")
		return
	}

	// Free text only matters inside the /add dialog.
	if h.advanceDialog(msg) {
		return
	}
	h.sendMessage(msg.Chat.ID, "Use /add to create a record or /help for the command list.")
}

func (h *Handlers) handleStart(msg *tgbotapi.Message) {
	text := "👋 Hi! I track your deadlines: contracts, licences, vehicle papers, court hearings and more.\n\n" +
		"I will remind you 30, 15, 7 and 3 days ahead, and on the day itself.\n\n" +
		"Use /add to create your first record or /help for all commands."
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) handleHelp(msg *tgbotapi.Message) {
	text := "<b>Commands</b>\n\n" +
		"/add — create a record (guided)\n" +
		"/cancel — abort the current dialog\n" +
		"/list — your records, soonest deadline first\n" +
		"/find &lt;text&gt; — search titles and descriptions\n" +
		"/done &lt;id&gt; — mark completed\n" +
		"/drop &lt;id&gt; — mark cancelled\n" +
		"/delete &lt;id&gt; — remove a record\n" +
		"/stats — your statistics\n" +
		"/types — available record types"
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := h.api.Send(msg); err != nil {
		h.log.WithError(err).Error("failed to send message")
	}
}

func (h *Handlers) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard
	if _, err := h.api.Send(msg); err != nil {
		h.log.WithError(err).Error("failed to send message")
	}
}
