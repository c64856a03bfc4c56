package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"med-reminder-go/internal/models"
	"med-reminder-go/internal/store"
)

// ProfileHandler returns or updates the caller's account.
func (h *Handler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := CurrentUser(r)

	switch r.Method {
	case http.MethodGet:
		user, err := h.Store.GetUser(r.Context(), userID)
		if err != nil {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, user)

	case http.MethodPut:
		var req struct {
			Username string `json:"username"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
			http.Error(w, "username is required", http.StatusBadRequest)
			return
		}

		if other, err := h.Store.GetUserByUsername(r.Context(), req.Username); err == nil && other.ID != userID {
			http.Error(w, "username already taken", http.StatusConflict)
			return
		}

		// The stored role is authoritative: the session copy may predate an
		// admin role change.
		user, err := h.Store.GetUser(r.Context(), userID)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Println("Failed to load user:", err)
			http.Error(w, "Failed to update profile", http.StatusInternalServerError)
			return
		}

		if err := h.Store.UpdateUser(r.Context(), userID, req.Username, user.Role); err != nil {
			log.Println("Failed to update profile:", err)
			http.Error(w, "Failed to update profile", http.StatusInternalServerError)
			return
		}

		session, _ := sessionCookies().Get(r, sessionName)
		session.Values["username"] = req.Username
		session.Save(r, w)

		writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ChangePasswordHandler rotates the caller's password after verifying the
// current one.
func (h *Handler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, _, _ := CurrentUser(r)

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if len(req.NewPassword) < 6 {
		http.Error(w, "new password must be at least 6 characters", http.StatusBadRequest)
		return
	}

	user, err := h.Store.GetUser(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Println("Failed to load user:", err)
		http.Error(w, "Failed to change password", http.StatusInternalServerError)
		return
	}
	if !user.CheckPassword(req.CurrentPassword) {
		http.Error(w, "current password is incorrect", http.StatusUnauthorized)
		return
	}

	hash, err := models.HashPassword(req.NewPassword)
	if err != nil {
		log.Println("Failed to hash password:", err)
		http.Error(w, "Failed to change password", http.StatusInternalServerError)
		return
	}
	if err := h.Store.UpdateUserPassword(r.Context(), userID, hash); err != nil {
		log.Println("Failed to update password:", err)
		http.Error(w, "Failed to change password", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
