package models

// Statistics aggregates record counts for the dashboard, the /stats
// command and the tool API.
type Statistics struct {
	Total                int              `json:"total"`
	ByStatus             map[Status]int   `json:"by_status"`
	ByPriority           map[Priority]int `json:"by_priority"`
	DueWithinWeek        int              `json:"due_within_week"`
	PendingNotifications int              `json:"pending_notifications"`
}
