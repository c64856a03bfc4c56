// Package scheduler keeps one in-process timer per pending reminder.
package scheduler

import (
	"context"
	"sync"
	"time"

	"med-reminder-go/internal/models"
	"med-reminder-go/internal/store"
)

// FireFunc is invoked when a reminder elapses. overdue is true when the
// reminder's time had already passed at schedule time (boot restore of a
// reminder the previous process never delivered).
type FireFunc func(r models.Reminder, overdue bool)

type Scheduler struct {
	mu      sync.Mutex
	timers  map[int64]*time.Timer
	fire    FireFunc
	stopped bool
}

func New(fire FireFunc) *Scheduler {
	return &Scheduler{
		timers: make(map[int64]*time.Timer),
		fire:   fire,
	}
}

// Schedule arms a timer for the reminder, replacing any timer already held
// for the same ID. A reminder whose time has passed fires immediately.
func (s *Scheduler) Schedule(r models.Reminder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	if t, ok := s.timers[r.ID]; ok {
		t.Stop()
		delete(s.timers, r.ID)
	}

	d := time.Until(r.Time)
	if d <= 0 {
		go s.fire(r, true)
		return
	}

	s.timers[r.ID] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, r.ID)
		stopped := s.stopped
		s.mu.Unlock()
		if !stopped {
			s.fire(r, false)
		}
	})
}

// Cancel stops and forgets the timer for a reminder. It reports whether a
// timer was pending.
func (s *Scheduler) Cancel(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.timers, id)
	return true
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every timer. The scheduler accepts no further work.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// RestoreAll reloads unfired reminders from the store and re-arms them.
// Overdue reminders fire immediately instead of being lost with the previous
// process. It returns how many were rescheduled and how many were overdue.
func (s *Scheduler) RestoreAll(ctx context.Context, st store.ReminderStore) (restored, overdue int, err error) {
	reminders, err := st.GetUnfiredReminders(ctx)
	if err != nil {
		return 0, 0, err
	}

	now := time.Now()
	for _, r := range reminders {
		if !r.Time.After(now) {
			overdue++
		} else {
			restored++
		}
		s.Schedule(r)
	}
	return restored, overdue, nil
}
