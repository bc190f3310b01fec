// Package planner materialises the notification schedule for a record.
// All functions are pure; persistence happens in the repository layer,
// inside the same database transaction as the record write.
package planner

import (
	"time"

	"github.com/ivzakh/termkeeper/internal/clock"
	"github.com/ivzakh/termkeeper/internal/models"
	"github.com/ivzakh/termkeeper/internal/render"
)

// Thresholds is the fixed days-before-deadline set on which reminders
// fire. A config key is reserved for making this tunable; see DESIGN.md.
var Thresholds = []int{30, 15, 7, 3, 0}

// Plan returns the notifications a record should carry as of today.
// Thresholds whose firing date is already past are dropped, never
// back-filled. A record without an end date gets none.
func Plan(t *models.Transaction, today clock.Date) []*models.Notification {
	if t.EndDate == nil {
		return nil
	}
	end := clock.DateOf(*t.EndDate)

	var out []*models.Notification
	for _, d := range Thresholds {
		fireDate := end.AddDays(-d)
		if fireDate.Before(today) {
			continue
		}
		out = append(out, &models.Notification{
			TransactionID: t.TransactionID,
			DaysBefore:    d,
			Recipients:    t.Recipients(),
			Message:       render.Phrase(d),
		})
	}
	return out
}

// NeedsReplan reports whether an update invalidates the record's unsent
// notifications. Deadline or recipient changes do; everything else
// (title, status, description) leaves the schedule alone.
func NeedsReplan(old, updated *models.Transaction) bool {
	if !sameDate(old.EndDate, updated.EndDate) {
		return true
	}
	if old.UserID != updated.UserID {
		return true
	}
	if !sameID(old.ResponsibleID, updated.ResponsibleID) {
		return true
	}
	return false
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return clock.DateOf(*a) == clock.DateOf(*b)
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
