package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"med-reminder-go/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchemaSQL string

type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite initializes or connects to the reminder database and applies
// the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(sqliteSchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Reminder methods

func (s *SQLiteStore) CreateReminder(ctx context.Context, r models.Reminder) (models.Reminder, error) {
	r.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (user_id, name, remind_at, kind, tone, file_path, fired, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		r.UserID, r.Name, r.Time.UTC().Format(time.RFC3339Nano), r.Type, r.Tone, r.FilePath,
		r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return models.Reminder{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Reminder{}, err
	}
	r.ID = id
	r.Fired = false
	return r, nil
}

func (s *SQLiteStore) GetReminder(ctx context.Context, id int64) (models.Reminder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, remind_at, kind, tone, file_path, fired, created_at
		 FROM reminders WHERE id = ?`, id)
	return scanSQLiteReminder(row)
}

func (s *SQLiteStore) GetReminders(ctx context.Context, userID int64) ([]models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, remind_at, kind, tone, file_path, fired, created_at
		 FROM reminders WHERE user_id = ? ORDER BY remind_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteReminders(rows)
}

func (s *SQLiteStore) GetUnfiredReminders(ctx context.Context) ([]models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, remind_at, kind, tone, file_path, fired, created_at
		 FROM reminders WHERE fired = 0 ORDER BY remind_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteReminders(rows)
}

func (s *SQLiteStore) MarkFired(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET fired = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) UpdateReminderTime(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET remind_at = ?, fired = 0 WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteReminder(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) PurgeFired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE fired = 1`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Push subscription methods

func (s *SQLiteStore) SavePushSubscription(ctx context.Context, userID int64, endpoint, p256dh, auth string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, endpoint) DO UPDATE SET p256dh = excluded.p256dh, auth = excluded.auth`,
		userID, endpoint, p256dh, auth, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteStore) DeletePushSubscription(ctx context.Context, userID int64, endpoint string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = ? AND endpoint = ?`, userID, endpoint)
	return err
}

func (s *SQLiteStore) GetPushSubscriptions(ctx context.Context, userID int64) ([]models.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, endpoint, p256dh, auth, created_at
		 FROM push_subscriptions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.PushSubscription
	for rows.Next() {
		var sub models.PushSubscription
		var created string
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &created); err != nil {
			return nil, err
		}
		sub.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// User methods

func (s *SQLiteStore) CreateUser(ctx context.Context, username, password, role string) (models.User, error) {
	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role, created_at) VALUES (?, ?, ?, ?)`,
		username, passwordHash, role, now.Format(time.RFC3339Nano))
	if err != nil {
		return models.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, err
	}

	return models.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
	}, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, totp_secret, totp_enabled, created_at
		 FROM users WHERE id = ?`, id)
	return scanSQLiteUser(row)
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, totp_secret, totp_enabled, created_at
		 FROM users WHERE username = ?`, username)
	return scanSQLiteUser(row)
}

func (s *SQLiteStore) GetUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, password_hash, role, totp_secret, totp_enabled, created_at
		 FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		var created string
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.TOTPSecret, &u.TOTPEnabled, &created); err != nil {
			return nil, err
		}
		u.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, id int64, username, role string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = ?, role = ? WHERE id = ?`, username, role, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) UpdateUser2FA(ctx context.Context, id int64, totpSecret string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET totp_secret = ?, totp_enabled = ? WHERE id = ?`, totpSecret, enabled, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Audit log methods

func (s *SQLiteStore) AddAuditLog(ctx context.Context, actorID int64, action, targetType string, targetID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (actor_id, action, target_type, target_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		actorID, action, targetType, targetID, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteStore) GetAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, actor_id, action, target_type, target_id, created_at
		 FROM audit_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var entry models.AuditLog
		var created string
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.TargetType, &entry.TargetID, &created); err != nil {
			return nil, err
		}
		entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteReminder(row rowScanner) (models.Reminder, error) {
	var r models.Reminder
	var remindAt, created string
	err := row.Scan(&r.ID, &r.UserID, &r.Name, &remindAt, &r.Type, &r.Tone, &r.FilePath, &r.Fired, &created)
	if err == sql.ErrNoRows {
		return models.Reminder{}, ErrNotFound
	}
	if err != nil {
		return models.Reminder{}, err
	}
	r.Time, _ = time.Parse(time.RFC3339Nano, remindAt)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return r, nil
}

func collectSQLiteReminders(rows *sql.Rows) ([]models.Reminder, error) {
	var reminders []models.Reminder
	for rows.Next() {
		r, err := scanSQLiteReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func scanSQLiteUser(row rowScanner) (models.User, error) {
	var u models.User
	var created string
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.TOTPSecret, &u.TOTPEnabled, &created)
	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return u, nil
}

func requireRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
