package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ivzakh/termkeeper/internal/models"
)

func TestPhrase(t *testing.T) {
	assert.Equal(t, "ends today", Phrase(0))
	assert.Equal(t, "ends tomorrow", Phrase(1))
	assert.Equal(t, "ends in 3 days", Phrase(3))
	assert.Equal(t, "ends in 30 days", Phrase(30))
}

func TestMessage(t *testing.T) {
	due := &models.DueNotification{
		Notification: models.Notification{
			NotificationID: 7,
			TransactionID:  42,
			DaysBefore:     3,
		},
		Title:    "driving licence",
		TypeName: "Licence",
		Priority: models.PriorityCritical,
		EndDate:  time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC),
	}

	text := Message(due)
	assert.Contains(t, text, "driving licence")
	assert.Contains(t, text, "Licence")
	assert.Contains(t, text, "ends in 3 days")
	assert.Contains(t, text, "🔴")
	assert.Contains(t, text, "2025-01-13")
	assert.Contains(t, text, "#42")
}

func TestMessageEndsToday(t *testing.T) {
	due := &models.DueNotification{
		Notification: models.Notification{TransactionID: 1, DaysBefore: 0},
		Title:        "lease",
		TypeName:     "Other",
		Priority:     models.PriorityNormal,
		EndDate:      time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	}

	text := Message(due)
	assert.Contains(t, text, "ends today")
	assert.Contains(t, text, "🟢")
}
