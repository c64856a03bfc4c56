package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"med-reminder-go/internal/models"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// RunMigrations creates tables if they don't exist and applies schema updates
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}

	migrations := []string{
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS totp_secret VARCHAR(255);`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS totp_enabled BOOLEAN DEFAULT FALSE;`,
		`ALTER TABLE reminders ADD COLUMN IF NOT EXISTS tone TEXT NOT NULL DEFAULT '';`,
		`ALTER TABLE reminders ADD COLUMN IF NOT EXISTS file_path TEXT NOT NULL DEFAULT '';`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Reminder methods

func (s *PostgresStore) CreateReminder(ctx context.Context, r models.Reminder) (models.Reminder, error) {
	var out models.Reminder
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO reminders (user_id, name, remind_at, kind, tone, file_path, fired, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW())
		 RETURNING id, user_id, name, remind_at, kind, tone, file_path, fired, created_at`,
		r.UserID, r.Name, r.Time.UTC(), r.Type, r.Tone, r.FilePath,
	).Scan(&out.ID, &out.UserID, &out.Name, &out.Time, &out.Type, &out.Tone, &out.FilePath, &out.Fired, &out.CreatedAt)
	if err != nil {
		return models.Reminder{}, err
	}
	return out, nil
}

func (s *PostgresStore) GetReminder(ctx context.Context, id int64) (models.Reminder, error) {
	var r models.Reminder
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, remind_at, kind, tone, file_path, fired, created_at
		 FROM reminders WHERE id = $1`, id,
	).Scan(&r.ID, &r.UserID, &r.Name, &r.Time, &r.Type, &r.Tone, &r.FilePath, &r.Fired, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Reminder{}, ErrNotFound
	}
	return r, err
}

func (s *PostgresStore) GetReminders(ctx context.Context, userID int64) ([]models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, remind_at, kind, tone, file_path, fired, created_at
		 FROM reminders WHERE user_id = $1 ORDER BY remind_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPostgresReminders(rows)
}

func (s *PostgresStore) GetUnfiredReminders(ctx context.Context) ([]models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, remind_at, kind, tone, file_path, fired, created_at
		 FROM reminders WHERE fired = FALSE ORDER BY remind_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPostgresReminders(rows)
}

func (s *PostgresStore) MarkFired(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET fired = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) UpdateReminderTime(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET remind_at = $1, fired = FALSE WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteReminder(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) PurgeFired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE fired = TRUE`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Push subscription methods

func (s *PostgresStore) SavePushSubscription(ctx context.Context, userID int64, endpoint, p256dh, auth string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (user_id, endpoint) DO UPDATE SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth`,
		userID, endpoint, p256dh, auth)
	return err
}

func (s *PostgresStore) DeletePushSubscription(ctx context.Context, userID int64, endpoint string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`, userID, endpoint)
	return err
}

func (s *PostgresStore) GetPushSubscriptions(ctx context.Context, userID int64) ([]models.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, endpoint, p256dh, auth, created_at
		 FROM push_subscriptions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.PushSubscription
	for rows.Next() {
		var sub models.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// User methods

func (s *PostgresStore) CreateUser(ctx context.Context, username, password, role string) (models.User, error) {
	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	var user models.User
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, role, created_at)
		 VALUES ($1, $2, $3, NOW())
		 RETURNING id, username, password_hash, role, created_at`,
		username, passwordHash, role,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (models.User, error) {
	return s.getUser(ctx, `SELECT id, username, password_hash, role, totp_secret, totp_enabled, created_at FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.getUser(ctx, `SELECT id, username, password_hash, role, totp_secret, totp_enabled, created_at FROM users WHERE username = $1`, username)
}

func (s *PostgresStore) getUser(ctx context.Context, query string, arg any) (models.User, error) {
	var user models.User
	var totpSecret sql.NullString

	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &totpSecret, &user.TOTPEnabled, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}

	if totpSecret.Valid {
		user.TOTPSecret = totpSecret.String
	}
	return user, nil
}

func (s *PostgresStore) GetUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, password_hash, role, totp_secret, totp_enabled, created_at
		 FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		var totpSecret sql.NullString
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &totpSecret, &user.TOTPEnabled, &user.CreatedAt); err != nil {
			return nil, err
		}
		if totpSecret.Valid {
			user.TOTPSecret = totpSecret.String
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *PostgresStore) UpdateUser(ctx context.Context, id int64, username, role string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = $1, role = $2 WHERE id = $3`, username, role, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) UpdateUser2FA(ctx context.Context, id int64, totpSecret string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET totp_secret = $1, totp_enabled = $2 WHERE id = $3`, totpSecret, enabled, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Audit log methods

func (s *PostgresStore) AddAuditLog(ctx context.Context, actorID int64, action, targetType string, targetID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (actor_id, action, target_type, target_id, created_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		actorID, action, targetType, targetID)
	return err
}

func (s *PostgresStore) GetAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor_id, action, target_type, target_id, created_at
		 FROM audit_logs ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var entry models.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.TargetType, &entry.TargetID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func collectPostgresReminders(rows *sql.Rows) ([]models.Reminder, error) {
	var reminders []models.Reminder
	for rows.Next() {
		var r models.Reminder
		if err := rows.Scan(&r.ID, &r.UserID, &r.Name, &r.Time, &r.Type, &r.Tone, &r.FilePath, &r.Fired, &r.CreatedAt); err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}
