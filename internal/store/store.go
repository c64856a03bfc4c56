package store

import (
	"context"
	"errors"
	"time"

	"med-reminder-go/internal/models"
)

// ErrNotFound is returned when a row the caller named does not exist.
var ErrNotFound = errors.New("not found")

// ReminderStore handles reminders and push subscriptions.
type ReminderStore interface {
	CreateReminder(ctx context.Context, r models.Reminder) (models.Reminder, error)
	GetReminder(ctx context.Context, id int64) (models.Reminder, error)
	GetReminders(ctx context.Context, userID int64) ([]models.Reminder, error)
	GetUnfiredReminders(ctx context.Context) ([]models.Reminder, error)
	MarkFired(ctx context.Context, id int64) error
	UpdateReminderTime(ctx context.Context, id int64, at time.Time) error
	DeleteReminder(ctx context.Context, id int64) error
	PurgeFired(ctx context.Context) (int64, error)

	SavePushSubscription(ctx context.Context, userID int64, endpoint, p256dh, auth string) error
	DeletePushSubscription(ctx context.Context, userID int64, endpoint string) error
	GetPushSubscriptions(ctx context.Context, userID int64) ([]models.PushSubscription, error)
}

// AccountStore handles users and the admin audit trail.
type AccountStore interface {
	CreateUser(ctx context.Context, username, password, role string) (models.User, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id int64, username, role string) error
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
	UpdateUser2FA(ctx context.Context, id int64, totpSecret string, enabled bool) error
	DeleteUser(ctx context.Context, id int64) error

	AddAuditLog(ctx context.Context, actorID int64, action, targetType string, targetID int64) error
	GetAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error)
}

// Store is the full persistence surface behind the service. The sqlite,
// json and postgres drivers all implement it.
type Store interface {
	ReminderStore
	AccountStore
	Close() error
}
