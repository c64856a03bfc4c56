package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"med-reminder-go/internal/models"
	"med-reminder-go/internal/store"
)

func openSQLite(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "reminders.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteReminderLifecycle(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "carol", "hunter22", "user")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	at := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	r, err := s.CreateReminder(ctx, models.Reminder{
		UserID:   u.ID,
		Name:     "Ibuprofen 200 mg",
		Time:     at,
		Type:     models.TypeNotification,
		Tone:     "bell.mp3",
		FilePath: "/uploads/rx.pdf",
	})
	if err != nil {
		t.Fatalf("CreateReminder failed: %v", err)
	}
	if r.ID == 0 {
		t.Fatal("expected reminder ID to be assigned")
	}

	got, err := s.GetReminder(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetReminder failed: %v", err)
	}
	if !got.Time.Equal(at) || got.Tone != "bell.mp3" || got.FilePath != "/uploads/rx.pdf" {
		t.Fatalf("reminder did not round-trip: %+v", got)
	}

	unfired, err := s.GetUnfiredReminders(ctx)
	if err != nil {
		t.Fatalf("GetUnfiredReminders failed: %v", err)
	}
	if len(unfired) != 1 {
		t.Fatalf("expected 1 unfired reminder, got %d", len(unfired))
	}

	if err := s.MarkFired(ctx, r.ID); err != nil {
		t.Fatalf("MarkFired failed: %v", err)
	}
	unfired, _ = s.GetUnfiredReminders(ctx)
	if len(unfired) != 0 {
		t.Fatalf("fired reminder still unfired: %+v", unfired)
	}

	snoozed := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)
	if err := s.UpdateReminderTime(ctx, r.ID, snoozed); err != nil {
		t.Fatalf("UpdateReminderTime failed: %v", err)
	}
	got, _ = s.GetReminder(ctx, r.ID)
	if got.Fired || !got.Time.Equal(snoozed) {
		t.Fatalf("snooze did not re-arm the reminder: %+v", got)
	}

	if err := s.DeleteReminder(ctx, r.ID); err != nil {
		t.Fatalf("DeleteReminder failed: %v", err)
	}
	if _, err := s.GetReminder(ctx, r.ID); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteReminder(ctx, r.ID); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestSQLitePurgeFired(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "dave", "hunter22", "user")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	var firedID int64
	for i := 0; i < 3; i++ {
		r, err := s.CreateReminder(ctx, models.Reminder{UserID: u.ID, Name: "dose", Time: time.Now().UTC()})
		if err != nil {
			t.Fatalf("CreateReminder failed: %v", err)
		}
		firedID = r.ID
	}
	if err := s.MarkFired(ctx, firedID); err != nil {
		t.Fatalf("MarkFired failed: %v", err)
	}

	purged, err := s.PurgeFired(ctx)
	if err != nil {
		t.Fatalf("PurgeFired failed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged reminder, got %d", purged)
	}
	left, _ := s.GetReminders(ctx, u.ID)
	if len(left) != 2 {
		t.Fatalf("expected 2 reminders left, got %d", len(left))
	}
}

func TestSQLiteSubscriptionUpsert(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "erin", "hunter22", "user")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := s.SavePushSubscription(ctx, u.ID, "https://push.example/x", "k1", "a1"); err != nil {
		t.Fatalf("SavePushSubscription failed: %v", err)
	}
	if err := s.SavePushSubscription(ctx, u.ID, "https://push.example/x", "k2", "a2"); err != nil {
		t.Fatalf("SavePushSubscription upsert failed: %v", err)
	}

	subs, err := s.GetPushSubscriptions(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetPushSubscriptions failed: %v", err)
	}
	if len(subs) != 1 || subs[0].P256dh != "k2" || subs[0].Auth != "a2" {
		t.Fatalf("expected upserted subscription, got %+v", subs)
	}
}

func TestSQLiteUserAndAudit(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "frank", "hunter22", "admin")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	byName, err := s.GetUserByUsername(ctx, "frank")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if byName.ID != u.ID || byName.Role != "admin" || !byName.CheckPassword("hunter22") {
		t.Fatalf("user did not round-trip: %+v", byName)
	}

	if err := s.UpdateUser(ctx, u.ID, "francis", "user"); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if err := s.UpdateUser(ctx, 9999, "ghost", "user"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}

	if err := s.AddAuditLog(ctx, u.ID, "update_user", "user", u.ID); err != nil {
		t.Fatalf("AddAuditLog failed: %v", err)
	}
	logs, err := s.GetAuditLogs(ctx, 10)
	if err != nil {
		t.Fatalf("GetAuditLogs failed: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != "update_user" {
		t.Fatalf("unexpected audit entries: %+v", logs)
	}
}
