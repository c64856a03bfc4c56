package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/sessions"

	"med-reminder-go/internal/models"
	"med-reminder-go/internal/store"
)

var (
	sessionOnce  sync.Once
	sessionStore *sessions.CookieStore
	sessionName  = "med-reminder-session"
)

// sessionCookies returns the cookie store, built on first use so that a
// SESSION_SECRET loaded from .env is honored.
func sessionCookies() *sessions.CookieStore {
	sessionOnce.Do(func() {
		secret := os.Getenv("SESSION_SECRET")
		if secret == "" {
			generated, err := models.GenerateSecret()
			if err != nil {
				log.Fatal("Failed to generate session secret:", err)
			}
			secret = generated
			log.Println("SESSION_SECRET not set, sessions will not survive a restart")
		}
		sessionStore = sessions.NewCookieStore([]byte(secret))
	})
	return sessionStore
}

// LoginHandler authenticates a user, enforcing TOTP when enabled.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Code     string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	user, err := h.Store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if !user.CheckPassword(req.Password) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if user.TOTPEnabled {
		if req.Code == "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"requires_2fa": true,
				"totp_enabled": true,
			})
			return
		}
		if !models.VerifyTOTPCode(user.TOTPSecret, req.Code) {
			http.Error(w, "Invalid 2FA code", http.StatusUnauthorized)
			return
		}
	}

	session, _ := sessionCookies().Get(r, sessionName)
	session.Values["user_id"] = user.ID
	session.Values["username"] = user.Username
	session.Values["role"] = user.Role
	session.Save(r, w)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// RegisterHandler creates a regular user account.
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Username == "" || len(req.Password) < 6 {
		http.Error(w, "username and a password of at least 6 characters are required", http.StatusBadRequest)
		return
	}

	if _, err := h.Store.GetUserByUsername(r.Context(), req.Username); err == nil {
		http.Error(w, "username already taken", http.StatusConflict)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Println("Failed to check username:", err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	user, err := h.Store.CreateUser(r.Context(), req.Username, req.Password, "user")
	if err != nil {
		log.Println("Failed to create user:", err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	session, _ := sessionCookies().Get(r, sessionName)
	session.Values["user_id"] = user.ID
	session.Values["username"] = user.Username
	session.Values["role"] = user.Role
	session.Save(r, w)

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"user":    user,
	})
}

// LogoutHandler drops the session.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionCookies().Get(r, sessionName)
	session.Values["user_id"] = nil
	session.Options.MaxAge = -1
	session.Save(r, w)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// AuthMiddleware checks if user is authenticated
func AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := sessionCookies().Get(r, sessionName)
		userID, ok := session.Values["user_id"].(int64)
		if !ok || userID == 0 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// AdminMiddleware checks if user is admin
func AdminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := sessionCookies().Get(r, sessionName)
		role, ok := session.Values["role"].(string)
		if !ok || role != "admin" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// CurrentUser returns the current user from session
func CurrentUser(r *http.Request) (int64, string, string) {
	session, _ := sessionCookies().Get(r, sessionName)
	userID, _ := session.Values["user_id"].(int64)
	username, _ := session.Values["username"].(string)
	role, _ := session.Values["role"].(string)
	return userID, username, role
}

// InitAdmin creates a default admin account when the user table is empty.
func (h *Handler) InitAdmin(ctx context.Context) {
	users, err := h.Store.GetUsers(ctx)
	if err != nil || len(users) > 0 {
		return
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}
	user, err := h.Store.CreateUser(ctx, "admin", password, "admin")
	if err != nil {
		log.Println("Failed to create default admin:", err)
		return
	}
	log.Printf("Created default admin user: %s", user.Username)
}
