package models

import "time"

// Reminder delivery channels.
const (
	TypeNotification = "notification"
	TypeAlarm        = "alarm"
)

type Reminder struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Time      time.Time `json:"time"`
	Type      string    `json:"type"` // "notification" or "alarm"
	Tone      string    `json:"tone,omitempty"`
	FilePath  string    `json:"file_path,omitempty"`
	Fired     bool      `json:"fired"`
	CreatedAt time.Time `json:"created_at"`
}

// ReminderEvent is the record of a reminder that fired. Events live in the
// Redis timeline with a TTL and are published for SSE listeners.
type ReminderEvent struct {
	ID         int64     `json:"id"`
	ReminderID int64     `json:"reminder_id"`
	UserID     int64     `json:"user_id"`
	Name       string    `json:"name"`
	FiredAt    time.Time `json:"fired_at"`
}
