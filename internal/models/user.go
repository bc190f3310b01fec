package models

import "time"

type User struct {
	UserID       int64      `json:"user_id"`
	Username     string     `json:"username"`
	FullName     string     `json:"full_name"`
	Phone        string     `json:"phone"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActiveAt *time.Time `json:"last_active_at"`
}
