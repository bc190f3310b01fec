package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivzakh/termkeeper/internal/clock"
	"github.com/ivzakh/termkeeper/internal/models"
	"github.com/ivzakh/termkeeper/internal/repository"
)

func (h *Handlers) handleList(ctx context.Context, msg *tgbotapi.Message) {
	records, err := h.repos.Transaction.List(ctx, repository.ListFilter{OwnerID: &msg.From.ID, Limit: 20})
	if err != nil {
		h.log.WithError(err).Error("failed to list records")
		h.sendMessage(msg.Chat.ID, "Something went wrong, try again later.")
		return
	}
	if len(records) == 0 {
		h.sendMessage(msg.Chat.ID, "You have no records yet. Use /add to create one.")
		return
	}
	h.sendMessage(msg.Chat.ID, h.formatRecordList("Your records", records))
}

func (h *Handlers) handleFind(ctx context.Context, msg *tgbotapi.Message) {
	keyword := strings.TrimSpace(msg.CommandArguments())
	if keyword == "" {
		h.sendMessage(msg.Chat.ID, "Usage: /find <text>")
		return
	}

	records, err := h.repos.Transaction.Search(ctx, msg.From.ID, keyword)
	if err != nil {
		h.log.WithError(err).Error("failed to search records")
		h.sendMessage(msg.Chat.ID, "Something went wrong, try again later.")
		return
	}
	if len(records) == 0 {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("Nothing matches %q.", keyword))
		return
	}
	h.sendMessage(msg.Chat.ID, h.formatRecordList(fmt.Sprintf("Matches for %q", keyword), records))
}

func (h *Handlers) handleSetStatus(ctx context.Context, msg *tgbotapi.Message, status string) {
	id, ok := h.parseRecordID(msg)
	if !ok {
		return
	}

	newStatus := models.Status(status)
	if _, err := h.repos.Transaction.UpdateOwned(ctx, id, msg.From.ID, repository.Patch{Status: &newStatus}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.sendMessage(msg.Chat.ID, fmt.Sprintf("Record #%d not found.", id))
			return
		}
		h.log.WithError(err).Error("failed to update record status")
		h.sendMessage(msg.Chat.ID, "Something went wrong, try again later.")
		return
	}

	if newStatus == models.StatusCompleted {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Record #%d completed. Its pending reminders are off.", id))
	} else {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("🚫 Record #%d cancelled. Its pending reminders are off.", id))
	}
}

func (h *Handlers) handleDelete(ctx context.Context, msg *tgbotapi.Message) {
	id, ok := h.parseRecordID(msg)
	if !ok {
		return
	}

	if err := h.repos.Transaction.SoftDeleteOwned(ctx, id, msg.From.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.sendMessage(msg.Chat.ID, fmt.Sprintf("Record #%d not found.", id))
			return
		}
		h.log.WithError(err).Error("failed to delete record")
		h.sendMessage(msg.Chat.ID, "Something went wrong, try again later.")
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("🗑 Record #%d deleted.", id))
}

func (h *Handlers) handleStats(ctx context.Context, msg *tgbotapi.Message) {
	stats, err := h.repos.Transaction.Statistics(ctx, &msg.From.ID)
	if err != nil {
		h.log.WithError(err).Error("failed to load statistics")
		h.sendMessage(msg.Chat.ID, "Something went wrong, try again later.")
		return
	}

	text := "<b>Your statistics</b>\n\n"
	text += fmt.Sprintf("Records: %d\n", stats.Total)
	text += fmt.Sprintf("• active: %d\n", stats.ByStatus[models.StatusActive])
	text += fmt.Sprintf("• completed: %d\n", stats.ByStatus[models.StatusCompleted])
	text += fmt.Sprintf("• cancelled: %d\n", stats.ByStatus[models.StatusCancelled])
	text += fmt.Sprintf("\nDue within 7 days: %d\n", stats.DueWithinWeek)
	text += fmt.Sprintf("Pending reminders: %d", stats.PendingNotifications)
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) handleTypes(ctx context.Context, msg *tgbotapi.Message) {
	types, err := h.repos.Type.List(ctx)
	if err != nil {
		h.log.WithError(err).Error("failed to list types")
		h.sendMessage(msg.Chat.ID, "Something went wrong, try again later.")
		return
	}

	text := "<b>Record types</b>\n\n"
	for _, t := range types {
		text += "• " + t.Name
		if len(t.Fields) > 0 {
			text += " (" + strings.Join(t.Fields, ", ") + ")"
		}
		text += "\n"
	}
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) parseRecordID(msg *tgbotapi.Message) (int, bool) {
	arg := strings.TrimSpace(msg.CommandArguments())
	id, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
	if err != nil || id <= 0 {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("Usage: /%s <id>", msg.Command()))
		return 0, false
	}
	return id, true
}

func (h *Handlers) formatRecordList(header string, records []*models.Transaction) string {
	today := h.clock.Today()
	text := "<b>" + header + "</b>\n\n"
	for _, r := range records {
		text += fmt.Sprintf("%s <b>#%d</b> %s", r.Priority.Glyph(), r.TransactionID, r.Title)
		if r.Status != models.StatusActive {
			text += " [" + string(r.Status) + "]"
		}
		if r.EndDate != nil {
			left := clock.DateOf(*r.EndDate).Sub(today)
			switch {
			case left < 0:
				text += fmt.Sprintf(" — ended %s", r.EndDate.Format("2006-01-02"))
			case left == 0:
				text += " — ends today"
			case left == 1:
				text += " — ends tomorrow"
			default:
				text += fmt.Sprintf(" — ends %s (%d days)", r.EndDate.Format("2006-01-02"), left)
			}
		}
		text += "\n"
	}
	return text
}
