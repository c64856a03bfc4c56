package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"med-reminder-go/internal/models"
)

const totpIssuer = "med-reminder"

// Setup2FAHandler generates a TOTP secret for the caller. The secret stays
// disabled until a code is verified.
func (h *Handler) Setup2FAHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, username, _ := CurrentUser(r)

	key, err := models.GenerateTOTPSecret(username, totpIssuer)
	if err != nil {
		log.Println("Failed to generate TOTP secret:", err)
		http.Error(w, "Failed to generate 2FA secret", http.StatusInternalServerError)
		return
	}

	if err := h.Store.UpdateUser2FA(r.Context(), userID, key.Secret(), false); err != nil {
		log.Println("Failed to store TOTP secret:", err)
		http.Error(w, "Failed to store 2FA secret", http.StatusInternalServerError)
		return
	}

	qr, err := models.TOTPQRCode(key)
	if err != nil {
		log.Println("Failed to render QR code:", err)
		http.Error(w, "Failed to render QR code", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"secret":  key.Secret(),
		"url":     key.URL(),
		"qr_code": qr,
	})
}

// Verify2FAHandler enables TOTP after the caller proves they hold the secret.
func (h *Handler) Verify2FAHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, _, _ := CurrentUser(r)

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}

	user, err := h.Store.GetUser(r.Context(), userID)
	if err != nil || user.TOTPSecret == "" {
		http.Error(w, "2FA setup has not been started", http.StatusBadRequest)
		return
	}

	if !models.VerifyTOTPCode(user.TOTPSecret, req.Code) {
		http.Error(w, "Invalid 2FA code", http.StatusUnauthorized)
		return
	}

	if err := h.Store.UpdateUser2FA(r.Context(), userID, user.TOTPSecret, true); err != nil {
		log.Println("Failed to enable 2FA:", err)
		http.Error(w, "Failed to enable 2FA", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true, "totp_enabled": true})
}

// Disable2FAHandler turns TOTP off after verifying a current code.
func (h *Handler) Disable2FAHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, _, _ := CurrentUser(r)

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}

	user, err := h.Store.GetUser(r.Context(), userID)
	if err != nil || !user.TOTPEnabled {
		http.Error(w, "2FA is not enabled", http.StatusBadRequest)
		return
	}

	if !models.VerifyTOTPCode(user.TOTPSecret, req.Code) {
		http.Error(w, "Invalid 2FA code", http.StatusUnauthorized)
		return
	}

	if err := h.Store.UpdateUser2FA(r.Context(), userID, "", false); err != nil {
		log.Println("Failed to disable 2FA:", err)
		http.Error(w, "Failed to disable 2FA", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true, "totp_enabled": false})
}
