package models

import "time"

type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Glyph returns the display marker used in reminder messages and lists.
func (p Priority) Glyph() string {
	switch p {
	case PriorityCritical:
		return "🔴"
	case PriorityHigh:
		return "🟡"
	default:
		return "🟢"
	}
}

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Transaction is a time-bounded administrative record: a contract, leave,
// vehicle document, licence, court hearing or generic item. EndDate is the
// scheduling anchor; a record without one gets no notifications.
type Transaction struct {
	TransactionID int            `json:"transaction_id"`
	TypeID        int            `json:"type_id"`
	UserID        int64          `json:"user_id"`
	ResponsibleID *int64         `json:"responsible_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Data          map[string]any `json:"data"`
	StartDate     time.Time      `json:"start_date"`
	EndDate       *time.Time     `json:"end_date"`
	Priority      Priority       `json:"priority"`
	Status        Status         `json:"status"`
	IsDeleted     bool           `json:"is_deleted"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Recipients returns the owner plus the responsible user when distinct.
func (t *Transaction) Recipients() []int64 {
	if t.ResponsibleID != nil && *t.ResponsibleID != t.UserID {
		return []int64{t.UserID, *t.ResponsibleID}
	}
	return []int64{t.UserID}
}
