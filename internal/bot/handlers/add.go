package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivzakh/termkeeper/internal/clock"
	"github.com/ivzakh/termkeeper/internal/models"
)

// The /add dialog walks through type, title, end date and priority.
// State is in-memory only; a restart simply drops half-finished dialogs.

const (
	stepTitle = iota
	stepEndDate
	stepPriority
)

type addState struct {
	Step      int
	TypeID    int
	TypeName  string
	Title     string
	EndDate   *time.Time
	ExpiresAt time.Time
}

var (
	dialogMutex sync.Mutex
	dialogs     = map[int64]*addState{}
)

func (h *Handlers) handleAdd(ctx context.Context, msg *tgbotapi.Message) {
	types, err := h.repos.Type.List(ctx)
	if err != nil {
		h.log.WithError(err).Error("failed to list types")
		h.sendMessage(msg.Chat.ID, "Something went wrong, try again later.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range types {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(t.Name, fmt.Sprintf("type:%d", t.TypeID)),
		))
	}
	h.sendWithKeyboard(msg.Chat.ID, "What kind of record is it?", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (h *Handlers) handleCancelDialog(msg *tgbotapi.Message) {
	dialogMutex.Lock()
	_, active := dialogs[msg.From.ID]
	delete(dialogs, msg.From.ID)
	dialogMutex.Unlock()

	if active {
		h.sendMessage(msg.Chat.ID, "Dialog cancelled.")
	} else {
		h.sendMessage(msg.Chat.ID, "Nothing to cancel.")
	}
}

func (h *Handlers) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	answer := tgbotapi.NewCallback(callback.ID, "")
	if _, err := h.api.Request(answer); err != nil {
		h.log.WithError(err).Error("failed to answer callback")
	}

	parts := strings.SplitN(callback.Data, ":", 2)
	if len(parts) != 2 {
		return
	}

	switch parts[0] {
	case "type":
		h.callbackType(ctx, callback, parts[1])
	case "prio":
		h.callbackPriority(ctx, callback, parts[1])
	}
}

func (h *Handlers) callbackType(ctx context.Context, callback *tgbotapi.CallbackQuery, arg string) {
	typeID, err := strconv.Atoi(arg)
	if err != nil {
		return
	}
	recordType, err := h.repos.Type.GetByID(ctx, typeID)
	if err != nil {
		h.log.WithError(err).Error("failed to load type")
		return
	}

	dialogMutex.Lock()
	dialogs[callback.From.ID] = &addState{
		Step:      stepTitle,
		TypeID:    recordType.TypeID,
		TypeName:  recordType.Name,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	dialogMutex.Unlock()

	h.sendMessage(callback.Message.Chat.ID,
		fmt.Sprintf("<b>%s</b> — got it. Now send me the title.", recordType.Name))
}

func (h *Handlers) callbackPriority(ctx context.Context, callback *tgbotapi.CallbackQuery, arg string) {
	priority := models.Priority(arg)
	if !priority.Valid() {
		return
	}

	dialogMutex.Lock()
	state, ok := dialogs[callback.From.ID]
	if ok {
		delete(dialogs, callback.From.ID)
	}
	dialogMutex.Unlock()

	if !ok || state.Step != stepPriority {
		return
	}

	record := &models.Transaction{
		TypeID:   state.TypeID,
		UserID:   callback.From.ID,
		Title:    state.Title,
		EndDate:  state.EndDate,
		Priority: priority,
	}
	if err := h.repos.Transaction.Create(ctx, record); err != nil {
		h.log.WithError(err).Error("failed to create record")
		h.sendMessage(callback.Message.Chat.ID, "Failed to save the record, try again.")
		return
	}
	if h.notifier != nil {
		h.notifier.Notify()
	}

	text := fmt.Sprintf("%s Record <b>#%d</b> saved: %s (%s)",
		record.Priority.Glyph(), record.TransactionID, record.Title, state.TypeName)
	if record.EndDate != nil {
		text += fmt.Sprintf("\n📅 Ends %s — reminders scheduled.", record.EndDate.Format("2006-01-02"))
	} else {
		text += "\nNo end date, so no reminders."
	}
	h.sendMessage(callback.Message.Chat.ID, text)
}

type dialogReply struct {
	text     string
	keyboard *tgbotapi.InlineKeyboardMarkup
}

// applyDialogInput advances the user's pending dialog by one free-text
// message. Updates run on separate goroutines, so the lock is held
// across every read and write of the state's fields.
func applyDialogInput(userID int64, text string, now time.Time) (dialogReply, bool) {
	dialogMutex.Lock()
	defer dialogMutex.Unlock()

	state, ok := dialogs[userID]
	if !ok {
		return dialogReply{}, false
	}
	if now.After(state.ExpiresAt) {
		delete(dialogs, userID)
		return dialogReply{}, false
	}

	switch state.Step {
	case stepTitle:
		title := strings.TrimSpace(text)
		if title == "" {
			return dialogReply{text: "The title can't be empty. Try again."}, true
		}
		state.Title = title
		state.Step = stepEndDate
		return dialogReply{text: "When does it end? Send a date as YYYY-MM-DD, or \"-\" for no end date."}, true

	case stepEndDate:
		trimmed := strings.TrimSpace(text)
		if trimmed != "-" {
			date, err := clock.ParseDate(trimmed)
			if err != nil {
				return dialogReply{text: "I can't read that date. Use YYYY-MM-DD, e.g. 2025-06-30, or \"-\" to skip."}, true
			}
			t := date.Time()
			state.EndDate = &t
		}
		state.Step = stepPriority
		keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🟢 normal", "prio:normal"),
			tgbotapi.NewInlineKeyboardButtonData("🟡 high", "prio:high"),
			tgbotapi.NewInlineKeyboardButtonData("🔴 critical", "prio:critical"),
		))
		return dialogReply{text: "How urgent is it?", keyboard: &keyboard}, true
	}
	return dialogReply{}, true
}

// advanceDialog feeds a free-text message into the user's pending /add
// dialog. Returns false when no dialog is active.
func (h *Handlers) advanceDialog(msg *tgbotapi.Message) bool {
	reply, ok := applyDialogInput(msg.From.ID, msg.Text, time.Now())
	if !ok {
		return false
	}
	if reply.keyboard != nil {
		h.sendWithKeyboard(msg.Chat.ID, reply.text, *reply.keyboard)
	} else if reply.text != "" {
		h.sendMessage(msg.Chat.ID, reply.text)
	}
	return true
}
