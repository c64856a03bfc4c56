package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"med-reminder-go/internal/models"
	"med-reminder-go/internal/parser"
)

// ParsePrescriptionHandler turns free prescription text into reminder
// templates without persisting anything. Callers without a session may
// authenticate with the shared-secret signature instead.
func (h *Handler) ParsePrescriptionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _, _ := CurrentUser(r)
	if userID == 0 && !validateSharedSecret(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	prescription, ok := h.parseBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, prescription)
}

// ImportPrescriptionHandler parses text and creates one reminder per dose
// template at its next occurrence.
func (h *Handler) ImportPrescriptionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, _, _ := CurrentUser(r)

	prescription, ok := h.parseBody(w, r)
	if !ok {
		return
	}

	now := time.Now()
	created := make([]models.Reminder, 0, len(prescription.Templates))
	for _, tmpl := range prescription.Templates {
		clock, err := time.Parse("15:04", tmpl.Time)
		if err != nil {
			continue
		}
		reminder, err := h.Store.CreateReminder(r.Context(), models.Reminder{
			UserID: userID,
			Name:   tmpl.Name,
			Time:   NextOccurrence(clock.Hour(), clock.Minute(), now),
			Type:   models.TypeNotification,
		})
		if err != nil {
			log.Println("Failed to create reminder from prescription:", err)
			http.Error(w, "Failed to create reminders", http.StatusInternalServerError)
			return
		}
		h.scheduleReminder(reminder)
		created = append(created, reminder)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"prescription": prescription,
		"reminders":    created,
	})
}

func (h *Handler) parseBody(w http.ResponseWriter, r *http.Request) (models.Prescription, bool) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return models.Prescription{}, false
	}

	prescription, err := parser.Parse(req.Text)
	if errors.Is(err, parser.ErrNoMedication) {
		http.Error(w, "no medication found in text", http.StatusBadRequest)
		return models.Prescription{}, false
	}
	if err != nil {
		log.Println("Failed to parse prescription:", err)
		http.Error(w, "Failed to parse prescription", http.StatusInternalServerError)
		return models.Prescription{}, false
	}
	return prescription, true
}

// validateSharedSecret checks X-Remind-Signature against HMAC-SHA256(body, secret).
// If WEBHOOK_SECRET is empty, validation is skipped (returns true).
func validateSharedSecret(r *http.Request) bool {
	secret := os.Getenv("WEBHOOK_SECRET")
	if secret == "" {
		return true
	}
	sig := r.Header.Get("X-Remind-Signature")
	if sig == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	r.Body = io.NopCloser(bytes.NewBuffer(body)) // restore for downstream handlers

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(expected))
}
