package models

import "time"

// Notification is one scheduled reminder for a transaction, firing
// DaysBefore civil days ahead of the record's end date. The sent flag is
// the sole de-duplication primitive across restarts.
type Notification struct {
	NotificationID int        `json:"notification_id"`
	TransactionID  int        `json:"transaction_id"`
	DaysBefore     int        `json:"days_before"`
	Recipients     []int64    `json:"recipients"`
	Message        string     `json:"message"`
	Sent           bool       `json:"sent"`
	SentAt         *time.Time `json:"sent_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// DueNotification is a notification joined with the parent record fields
// the dispatcher needs to render and address the message.
type DueNotification struct {
	Notification
	Title    string    `json:"title"`
	TypeName string    `json:"type_name"`
	Priority Priority  `json:"priority"`
	EndDate  time.Time `json:"end_date"`
	OwnerID  int64     `json:"owner_id"`
}
