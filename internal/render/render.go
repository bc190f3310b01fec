// Package render builds the human-readable reminder texts. It is pure:
// no I/O, no state.
package render

import (
	"fmt"

	"github.com/ivzakh/termkeeper/internal/models"
)

// Phrase describes when the record's deadline falls, relative to the
// notification's firing day.
func Phrase(daysBefore int) string {
	switch daysBefore {
	case 0:
		return "ends today"
	case 1:
		return "ends tomorrow"
	default:
		return fmt.Sprintf("ends in %d days", daysBefore)
	}
}

// Message renders the full reminder text for a due notification.
// HTML parse mode; keep tags to <b> only.
func Message(n *models.DueNotification) string {
	text := "⏰ <b>Deadline reminder</b>\n\n"
	text += fmt.Sprintf("%s <b>%s</b> (%s) %s\n", n.Priority.Glyph(), n.Title, n.TypeName, Phrase(n.DaysBefore))
	text += fmt.Sprintf("📅 End date: %s\n", n.EndDate.Format("2006-01-02"))
	text += fmt.Sprintf("Record #%d", n.TransactionID)
	return text
}
