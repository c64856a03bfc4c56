package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"med-reminder-go/internal/metrics"
	"med-reminder-go/internal/models"
	"med-reminder-go/internal/notify"
	"med-reminder-go/internal/scheduler"
	"med-reminder-go/internal/store"
)

type Handler struct {
	Store     store.Store
	Events    *store.RedisEvents
	Scheduler *scheduler.Scheduler
	Pusher    *notify.Pusher
	UploadDir string
}

func NewHandler(st store.Store, events *store.RedisEvents, sched *scheduler.Scheduler, pusher *notify.Pusher, uploadDir string) *Handler {
	return &Handler{
		Store:     st,
		Events:    events,
		Scheduler: sched,
		Pusher:    pusher,
		UploadDir: uploadDir,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RemindersHandler lists the caller's reminders and creates new ones.
func (h *Handler) RemindersHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := CurrentUser(r)

	switch r.Method {
	case http.MethodGet:
		reminders, err := h.Store.GetReminders(r.Context(), userID)
		if err != nil {
			log.Println("Failed to list reminders:", err)
			http.Error(w, "Failed to list reminders", http.StatusInternalServerError)
			return
		}
		if reminders == nil {
			reminders = []models.Reminder{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"reminders": reminders,
			"count":     len(reminders),
		})

	case http.MethodPost:
		var req struct {
			Name     string `json:"name"`
			Time     string `json:"time"`
			Type     string `json:"type"`
			Tone     string `json:"tone"`
			FilePath string `json:"file_path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		if req.Name == "" || req.Time == "" {
			http.Error(w, "name and time are required", http.StatusBadRequest)
			return
		}

		at, err := ParseReminderTime(req.Time)
		if err != nil {
			http.Error(w, "unparseable time: "+req.Time, http.StatusBadRequest)
			return
		}

		kind := req.Type
		if kind == "" {
			kind = models.TypeNotification
		}
		if kind != models.TypeNotification && kind != models.TypeAlarm {
			http.Error(w, "type must be notification or alarm", http.StatusBadRequest)
			return
		}

		reminder, err := h.Store.CreateReminder(r.Context(), models.Reminder{
			UserID:   userID,
			Name:     req.Name,
			Time:     at,
			Type:     kind,
			Tone:     req.Tone,
			FilePath: req.FilePath,
		})
		if err != nil {
			log.Println("Failed to create reminder:", err)
			http.Error(w, "Failed to create reminder", http.StatusInternalServerError)
			return
		}

		h.scheduleReminder(reminder)
		writeJSON(w, http.StatusCreated, reminder)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ReminderItemHandler routes /api/reminders/{id} and /api/reminders/{id}/snooze.
func (h *Handler) ReminderItemHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/reminders/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "reminder id required", http.StatusBadRequest)
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "invalid reminder id", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.deleteReminder(w, r, id)
	case len(parts) == 2 && parts[1] == "snooze" && r.Method == http.MethodPost:
		h.snoozeReminder(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) ownedReminder(w http.ResponseWriter, r *http.Request, id int64) (models.Reminder, bool) {
	userID, _, role := CurrentUser(r)

	reminder, err := h.Store.GetReminder(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "reminder not found", http.StatusNotFound)
		return models.Reminder{}, false
	}
	if err != nil {
		log.Println("Failed to load reminder:", err)
		http.Error(w, "Failed to load reminder", http.StatusInternalServerError)
		return models.Reminder{}, false
	}
	if reminder.UserID != userID && role != "admin" {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return models.Reminder{}, false
	}
	return reminder, true
}

func (h *Handler) deleteReminder(w http.ResponseWriter, r *http.Request, id int64) {
	if _, ok := h.ownedReminder(w, r, id); !ok {
		return
	}

	if err := h.Store.DeleteReminder(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "reminder not found", http.StatusNotFound)
			return
		}
		log.Println("Failed to delete reminder:", err)
		http.Error(w, "Failed to delete reminder", http.StatusInternalServerError)
		return
	}

	// Only disarm the timer once the row is actually gone.
	h.Scheduler.Cancel(id)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) snoozeReminder(w http.ResponseWriter, r *http.Request, id int64) {
	reminder, ok := h.ownedReminder(w, r, id)
	if !ok {
		return
	}

	var req struct {
		Minutes int `json:"minutes"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Minutes <= 0 {
		req.Minutes = 10
	}

	at := time.Now().Add(time.Duration(req.Minutes) * time.Minute)
	if err := h.Store.UpdateReminderTime(r.Context(), id, at); err != nil {
		log.Println("Failed to snooze reminder:", err)
		http.Error(w, "Failed to snooze reminder", http.StatusInternalServerError)
		return
	}

	reminder.Time = at
	reminder.Fired = false
	h.scheduleReminder(reminder)
	writeJSON(w, http.StatusOK, reminder)
}

func (h *Handler) scheduleReminder(r models.Reminder) {
	h.Scheduler.Schedule(r)
	metrics.RemindersScheduled.Inc()
}

// EventsHandler streams fired-reminder events for the caller over SSE.
func (h *Handler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		http.Error(w, "event feed disabled", http.StatusServiceUnavailable)
		return
	}
	userID, _, _ := CurrentUser(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	pubsub := h.Events.Subscribe(r.Context())
	defer pubsub.Close()

	ch := pubsub.Channel()

	fmt.Fprintf(w, "data: %s\n\n", "connected")
	w.(http.Flusher).Flush()

	for {
		select {
		case msg := <-ch:
			var ev models.ReminderEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil || ev.UserID != userID {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg.Payload)
			w.(http.Flusher).Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// HistoryHandler returns the caller's recently fired reminders.
func (h *Handler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		http.Error(w, "event feed disabled", http.StatusServiceUnavailable)
		return
	}
	userID, _, _ := CurrentUser(r)

	events, err := h.Events.RecentEvents(r.Context(), userID, 50)
	if err != nil {
		log.Println("Failed to read event history:", err)
		http.Error(w, "Failed to read event history", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []models.ReminderEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func (h *Handler) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ParseReminderTime accepts RFC3339, the browser datetime-local form, or a
// bare clock time meaning its next occurrence.
func ParseReminderTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04", s, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("15:04", s, time.Local); err == nil {
		return NextOccurrence(t.Hour(), t.Minute(), time.Now()), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time format: %q", s)
}

// NextOccurrence returns the next wall-clock occurrence of hh:mm after now.
func NextOccurrence(hour, minute int, now time.Time) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}
