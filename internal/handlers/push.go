package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

// GetVAPIDKeyHandler returns the public VAPID key
func (h *Handler) GetVAPIDKeyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"publicKey": h.Pusher.PublicKey(),
	})
}

// SubscribePushHandler saves or removes the caller's push subscription.
func (h *Handler) SubscribePushHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := CurrentUser(r)

	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		if req.Keys.P256dh == "" || req.Keys.Auth == "" {
			http.Error(w, "subscription keys are required", http.StatusBadRequest)
			return
		}
		if err := h.Store.SavePushSubscription(r.Context(), userID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth); err != nil {
			log.Printf("Failed to save subscription: %v", err)
			http.Error(w, "Failed to save subscription", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	case http.MethodDelete:
		if err := h.Store.DeletePushSubscription(r.Context(), userID, req.Endpoint); err != nil {
			log.Printf("Failed to remove subscription: %v", err)
			http.Error(w, "Failed to remove subscription", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
