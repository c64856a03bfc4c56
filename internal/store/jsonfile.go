package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"med-reminder-go/internal/models"
)

// jsonDocument is the on-disk shape of the JSON backend: one flat document,
// rewritten atomically on every mutation.
type jsonDocument struct {
	NextReminderID     int64                     `json:"next_reminder_id"`
	NextSubscriptionID int64                     `json:"next_subscription_id"`
	NextUserID         int64                     `json:"next_user_id"`
	NextAuditID        int64                     `json:"next_audit_id"`
	Reminders          []models.Reminder         `json:"reminders"`
	Subscriptions      []models.PushSubscription `json:"subscriptions"`
	Users              []models.User             `json:"users"`
	AuditLogs          []models.AuditLog         `json:"audit_logs"`
}

// jsonUser carries the fields the public User model hides from JSON.
type jsonUser struct {
	models.User
	PasswordHash string `json:"password_hash"`
	TOTPSecret   string `json:"totp_secret,omitempty"`
}

type JSONStore struct {
	mu   sync.Mutex
	path string
	doc  jsonDocument
}

// OpenJSON loads (or creates) the JSON document backing the store.
func OpenJSON(path string) (*JSONStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	}

	s := &JSONStore{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.doc = jsonDocument{NextReminderID: 1, NextSubscriptionID: 1, NextUserID: 1, NextAuditID: 1}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store file: %w", err)
	}

	var raw struct {
		jsonDocument
		Users []jsonUser `json:"users"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse store file %s: %w", path, err)
	}
	s.doc = raw.jsonDocument
	s.doc.Users = nil
	for _, u := range raw.Users {
		user := u.User
		user.PasswordHash = u.PasswordHash
		user.TOTPSecret = u.TOTPSecret
		s.doc.Users = append(s.doc.Users, user)
	}
	if s.doc.NextReminderID == 0 {
		s.doc.NextReminderID = 1
	}
	if s.doc.NextSubscriptionID == 0 {
		s.doc.NextSubscriptionID = 1
	}
	if s.doc.NextUserID == 0 {
		s.doc.NextUserID = 1
	}
	if s.doc.NextAuditID == 0 {
		s.doc.NextAuditID = 1
	}
	return s, nil
}

func (s *JSONStore) Close() error { return nil }

// save writes the document to a temp file and renames it into place.
// Callers must hold s.mu.
func (s *JSONStore) save() error {
	out := struct {
		jsonDocument
		Users []jsonUser `json:"users"`
	}{jsonDocument: s.doc}
	out.jsonDocument.Users = nil
	for _, u := range s.doc.Users {
		out.Users = append(out.Users, jsonUser{User: u, PasswordHash: u.PasswordHash, TOTPSecret: u.TOTPSecret})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Reminder methods

func (s *JSONStore) CreateReminder(_ context.Context, r models.Reminder) (models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.doc.NextReminderID
	s.doc.NextReminderID++
	r.Fired = false
	r.CreatedAt = time.Now().UTC()
	s.doc.Reminders = append(s.doc.Reminders, r)

	if err := s.save(); err != nil {
		return models.Reminder{}, err
	}
	return r, nil
}

func (s *JSONStore) GetReminder(_ context.Context, id int64) (models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.doc.Reminders {
		if r.ID == id {
			return r, nil
		}
	}
	return models.Reminder{}, ErrNotFound
}

func (s *JSONStore) GetReminders(_ context.Context, userID int64) ([]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Reminder
	for _, r := range s.doc.Reminders {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sortRemindersByTime(out)
	return out, nil
}

func (s *JSONStore) GetUnfiredReminders(_ context.Context) ([]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Reminder
	for _, r := range s.doc.Reminders {
		if !r.Fired {
			out = append(out, r)
		}
	}
	sortRemindersByTime(out)
	return out, nil
}

func (s *JSONStore) MarkFired(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Reminders {
		if s.doc.Reminders[i].ID == id {
			s.doc.Reminders[i].Fired = true
			return s.save()
		}
	}
	return ErrNotFound
}

func (s *JSONStore) UpdateReminderTime(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Reminders {
		if s.doc.Reminders[i].ID == id {
			s.doc.Reminders[i].Time = at.UTC()
			s.doc.Reminders[i].Fired = false
			return s.save()
		}
	}
	return ErrNotFound
}

func (s *JSONStore) DeleteReminder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.doc.Reminders {
		if r.ID == id {
			s.doc.Reminders = append(s.doc.Reminders[:i], s.doc.Reminders[i+1:]...)
			return s.save()
		}
	}
	return ErrNotFound
}

func (s *JSONStore) PurgeFired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.doc.Reminders[:0]
	var purged int64
	for _, r := range s.doc.Reminders {
		if r.Fired {
			purged++
			continue
		}
		kept = append(kept, r)
	}
	s.doc.Reminders = kept
	if purged == 0 {
		return 0, nil
	}
	return purged, s.save()
}

// Push subscription methods

func (s *JSONStore) SavePushSubscription(_ context.Context, userID int64, endpoint, p256dh, auth string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.doc.Subscriptions {
		if sub.UserID == userID && sub.Endpoint == endpoint {
			s.doc.Subscriptions[i].P256dh = p256dh
			s.doc.Subscriptions[i].Auth = auth
			return s.save()
		}
	}

	s.doc.Subscriptions = append(s.doc.Subscriptions, models.PushSubscription{
		ID:        s.doc.NextSubscriptionID,
		UserID:    userID,
		Endpoint:  endpoint,
		P256dh:    p256dh,
		Auth:      auth,
		CreatedAt: time.Now().UTC(),
	})
	s.doc.NextSubscriptionID++
	return s.save()
}

func (s *JSONStore) DeletePushSubscription(_ context.Context, userID int64, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.doc.Subscriptions {
		if sub.UserID == userID && sub.Endpoint == endpoint {
			s.doc.Subscriptions = append(s.doc.Subscriptions[:i], s.doc.Subscriptions[i+1:]...)
			return s.save()
		}
	}
	return nil
}

func (s *JSONStore) GetPushSubscriptions(_ context.Context, userID int64) ([]models.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.PushSubscription
	for _, sub := range s.doc.Subscriptions {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out, nil
}

// User methods

func (s *JSONStore) CreateUser(_ context.Context, username, password, role string) (models.User, error) {
	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.doc.Users {
		if u.Username == username {
			return models.User{}, errors.New("username already taken")
		}
	}

	user := models.User{
		ID:           s.doc.NextUserID,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	s.doc.NextUserID++
	s.doc.Users = append(s.doc.Users, user)

	if err := s.save(); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *JSONStore) GetUser(_ context.Context, id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.doc.Users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (s *JSONStore) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.doc.Users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (s *JSONStore) GetUsers(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.User, len(s.doc.Users))
	copy(out, s.doc.Users)
	return out, nil
}

func (s *JSONStore) UpdateUser(_ context.Context, id int64, username, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Users {
		if s.doc.Users[i].ID == id {
			s.doc.Users[i].Username = username
			s.doc.Users[i].Role = role
			return s.save()
		}
	}
	return ErrNotFound
}

func (s *JSONStore) UpdateUserPassword(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Users {
		if s.doc.Users[i].ID == id {
			s.doc.Users[i].PasswordHash = passwordHash
			return s.save()
		}
	}
	return ErrNotFound
}

func (s *JSONStore) UpdateUser2FA(_ context.Context, id int64, totpSecret string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Users {
		if s.doc.Users[i].ID == id {
			s.doc.Users[i].TOTPSecret = totpSecret
			s.doc.Users[i].TOTPEnabled = enabled
			return s.save()
		}
	}
	return ErrNotFound
}

func (s *JSONStore) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, u := range s.doc.Users {
		if u.ID == id {
			s.doc.Users = append(s.doc.Users[:i], s.doc.Users[i+1:]...)
			return s.save()
		}
	}
	return ErrNotFound
}

// Audit log methods

func (s *JSONStore) AddAuditLog(_ context.Context, actorID int64, action, targetType string, targetID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.AuditLogs = append(s.doc.AuditLogs, models.AuditLog{
		ID:         s.doc.NextAuditID,
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		CreatedAt:  time.Now().UTC(),
	})
	s.doc.NextAuditID++
	return s.save()
}

func (s *JSONStore) GetAuditLogs(_ context.Context, limit int) ([]models.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.AuditLog
	for i := len(s.doc.AuditLogs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.doc.AuditLogs[i])
	}
	return out, nil
}

func sortRemindersByTime(reminders []models.Reminder) {
	sort.Slice(reminders, func(i, j int) bool {
		return reminders[i].Time.Before(reminders[j].Time)
	})
}
