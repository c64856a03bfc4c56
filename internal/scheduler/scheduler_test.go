package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"med-reminder-go/internal/models"
	"med-reminder-go/internal/scheduler"
	"med-reminder-go/internal/store"
)

type firing struct {
	reminder models.Reminder
	overdue  bool
}

func collector() (scheduler.FireFunc, chan firing) {
	ch := make(chan firing, 16)
	return func(r models.Reminder, overdue bool) {
		ch <- firing{reminder: r, overdue: overdue}
	}, ch
}

func waitFire(t *testing.T, ch chan firing) firing {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reminder to fire")
		return firing{}
	}
}

func TestScheduleFiresOnce(t *testing.T) {
	fire, ch := collector()
	s := scheduler.New(fire)
	defer s.Stop()

	s.Schedule(models.Reminder{ID: 1, Name: "Paracetamol", Time: time.Now().Add(20 * time.Millisecond)})

	f := waitFire(t, ch)
	if f.reminder.ID != 1 || f.overdue {
		t.Fatalf("unexpected firing: %+v", f)
	}
	if s.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", s.Pending())
	}

	select {
	case f := <-ch:
		t.Fatalf("reminder fired twice: %+v", f)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	fire, ch := collector()
	s := scheduler.New(fire)
	defer s.Stop()

	s.Schedule(models.Reminder{ID: 7, Name: "Ibuprofen", Time: time.Now().Add(50 * time.Millisecond)})
	if !s.Cancel(7) {
		t.Fatal("expected Cancel to report a pending timer")
	}
	if s.Cancel(7) {
		t.Fatal("expected second Cancel to report nothing pending")
	}

	select {
	case f := <-ch:
		t.Fatalf("cancelled reminder fired: %+v", f)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestScheduleReplacesExistingTimer(t *testing.T) {
	fire, ch := collector()
	s := scheduler.New(fire)
	defer s.Stop()

	s.Schedule(models.Reminder{ID: 3, Name: "old", Time: time.Now().Add(time.Hour)})
	s.Schedule(models.Reminder{ID: 3, Name: "new", Time: time.Now().Add(20 * time.Millisecond)})

	if s.Pending() != 1 {
		t.Fatalf("expected 1 pending timer, got %d", s.Pending())
	}

	f := waitFire(t, ch)
	if f.reminder.Name != "new" {
		t.Fatalf("expected replacement reminder to fire, got %q", f.reminder.Name)
	}
}

func TestOverdueFiresImmediately(t *testing.T) {
	fire, ch := collector()
	s := scheduler.New(fire)
	defer s.Stop()

	s.Schedule(models.Reminder{ID: 9, Name: "missed dose", Time: time.Now().Add(-time.Minute)})

	f := waitFire(t, ch)
	if !f.overdue {
		t.Fatal("expected overdue firing")
	}
}

func TestStopCancelsEverything(t *testing.T) {
	fire, ch := collector()
	s := scheduler.New(fire)

	for i := int64(1); i <= 5; i++ {
		s.Schedule(models.Reminder{ID: i, Time: time.Now().Add(30 * time.Millisecond)})
	}
	s.Stop()

	if s.Pending() != 0 {
		t.Fatalf("expected no pending timers after Stop, got %d", s.Pending())
	}
	select {
	case f := <-ch:
		t.Fatalf("reminder fired after Stop: %+v", f)
	case <-time.After(100 * time.Millisecond):
	}

	// Schedule after Stop is a no-op.
	s.Schedule(models.Reminder{ID: 99, Time: time.Now().Add(10 * time.Millisecond)})
	if s.Pending() != 0 {
		t.Fatal("scheduler accepted work after Stop")
	}
}

func TestRestoreAll(t *testing.T) {
	dir := t.TempDir()
	st, err := store.OpenJSON(dir + "/reminders.json")
	if err != nil {
		t.Fatalf("OpenJSON failed: %v", err)
	}

	ctx := context.Background()
	future, err := st.CreateReminder(ctx, models.Reminder{UserID: 1, Name: "future", Time: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("CreateReminder failed: %v", err)
	}
	if _, err := st.CreateReminder(ctx, models.Reminder{UserID: 1, Name: "overdue", Time: time.Now().Add(-time.Hour)}); err != nil {
		t.Fatalf("CreateReminder failed: %v", err)
	}
	fired, err := st.CreateReminder(ctx, models.Reminder{UserID: 1, Name: "already fired", Time: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("CreateReminder failed: %v", err)
	}
	if err := st.MarkFired(ctx, fired.ID); err != nil {
		t.Fatalf("MarkFired failed: %v", err)
	}

	var mu sync.Mutex
	names := map[string]bool{}
	s := scheduler.New(func(r models.Reminder, overdue bool) {
		mu.Lock()
		names[r.Name] = overdue
		mu.Unlock()
	})
	defer s.Stop()

	restored, overdue, err := s.RestoreAll(ctx, st)
	if err != nil {
		t.Fatalf("RestoreAll failed: %v", err)
	}
	if restored != 1 || overdue != 1 {
		t.Fatalf("expected 1 restored and 1 overdue, got %d and %d", restored, overdue)
	}
	if s.Pending() != 1 {
		t.Fatalf("expected the future reminder to be pending, got %d timers", s.Pending())
	}

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		wasOverdue, firedNow := names["overdue"]
		mu.Unlock()
		if firedNow {
			if !wasOverdue {
				t.Fatal("overdue reminder should fire with overdue=true")
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("overdue reminder never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if s.Cancel(future.ID) != true {
		t.Fatal("expected future reminder timer to be cancellable")
	}
}
