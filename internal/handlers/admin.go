package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"med-reminder-go/internal/store"
)

// AdminUsersHandler lists users and creates accounts with explicit roles.
func (h *Handler) AdminUsersHandler(w http.ResponseWriter, r *http.Request) {
	actorID, _, _ := CurrentUser(r)

	switch r.Method {
	case http.MethodGet:
		users, err := h.Store.GetUsers(r.Context())
		if err != nil {
			log.Println("Failed to list users:", err)
			http.Error(w, "Failed to list users", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})

	case http.MethodPost:
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		if req.Username == "" || len(req.Password) < 6 {
			http.Error(w, "username and a password of at least 6 characters are required", http.StatusBadRequest)
			return
		}
		if req.Role == "" {
			req.Role = "user"
		}
		if req.Role != "user" && req.Role != "admin" {
			http.Error(w, "role must be user or admin", http.StatusBadRequest)
			return
		}

		if _, err := h.Store.GetUserByUsername(r.Context(), req.Username); err == nil {
			http.Error(w, "username already taken", http.StatusConflict)
			return
		}

		user, err := h.Store.CreateUser(r.Context(), req.Username, req.Password, req.Role)
		if err != nil {
			log.Println("Failed to create user:", err)
			http.Error(w, "Failed to create user", http.StatusInternalServerError)
			return
		}

		h.audit(r, actorID, "create_user", "user", user.ID)
		writeJSON(w, http.StatusCreated, user)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// AdminUserItemHandler updates or deletes a user by id.
func (h *Handler) AdminUserItemHandler(w http.ResponseWriter, r *http.Request) {
	actorID, _, _ := CurrentUser(r)

	idStr := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin/users/"), "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		if req.Role != "user" && req.Role != "admin" {
			http.Error(w, "role must be user or admin", http.StatusBadRequest)
			return
		}

		if err := h.Store.UpdateUser(r.Context(), id, req.Username, req.Role); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "user not found", http.StatusNotFound)
				return
			}
			log.Println("Failed to update user:", err)
			http.Error(w, "Failed to update user", http.StatusInternalServerError)
			return
		}

		h.audit(r, actorID, "update_user", "user", id)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	case http.MethodDelete:
		if id == actorID {
			http.Error(w, "cannot delete your own account", http.StatusBadRequest)
			return
		}
		if err := h.Store.DeleteUser(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "user not found", http.StatusNotFound)
				return
			}
			log.Println("Failed to delete user:", err)
			http.Error(w, "Failed to delete user", http.StatusInternalServerError)
			return
		}

		h.audit(r, actorID, "delete_user", "user", id)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// AdminPurgeHandler deletes fired reminders and drops the event feed.
func (h *Handler) AdminPurgeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actorID, _, _ := CurrentUser(r)

	purged, err := h.Store.PurgeFired(r.Context())
	if err != nil {
		log.Printf("Failed to purge reminders: %v", err)
		http.Error(w, "Failed to purge reminders", http.StatusInternalServerError)
		return
	}

	if h.Events != nil {
		if err := h.Events.PurgeEvents(r.Context()); err != nil {
			log.Printf("Failed to purge event feed: %v", err)
		}
	}

	h.audit(r, actorID, "purge_fired", "reminder", 0)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "purged": purged})
}

// AdminAuditHandler returns recent admin actions.
func (h *Handler) AdminAuditHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	logs, err := h.Store.GetAuditLogs(r.Context(), 100)
	if err != nil {
		log.Println("Failed to read audit log:", err)
		http.Error(w, "Failed to read audit log", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": logs, "count": len(logs)})
}

func (h *Handler) audit(r *http.Request, actorID int64, action, targetType string, targetID int64) {
	if err := h.Store.AddAuditLog(r.Context(), actorID, action, targetType, targetID); err != nil {
		log.Printf("Failed to record audit entry %s: %v", action, err)
	}
}
