// Package notify delivers Web Push notifications for fired reminders.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/SherClockHolmes/webpush-go"

	"med-reminder-go/internal/metrics"
	"med-reminder-go/internal/store"
)

// Payload is the JSON body the service worker receives.
type Payload struct {
	Title      string `json:"title"`
	Body       string `json:"body"`
	Type       string `json:"type"`
	Tone       string `json:"tone,omitempty"`
	ReminderID int64  `json:"reminder_id"`
}

type Pusher struct {
	store           store.ReminderStore
	subscriber      string
	vapidPublicKey  string
	vapidPrivateKey string
}

// NewPusher loads VAPID keys from the environment, generating a fresh pair
// when none are configured.
func NewPusher(st store.ReminderStore) (*Pusher, error) {
	privateKey := os.Getenv("VAPID_PRIVATE_KEY")
	publicKey := os.Getenv("VAPID_PUBLIC_KEY")

	if privateKey == "" || publicKey == "" {
		log.Println("VAPID keys not found in environment. Generating new keys...")
		var err error
		privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
		if err != nil {
			return nil, err
		}
		log.Printf("Generated VAPID Keys:\nVAPID_PRIVATE_KEY=%s\nVAPID_PUBLIC_KEY=%s\n(Add these to your .env file to persist them)", privateKey, publicKey)
	}

	subscriber := os.Getenv("VAPID_SUBSCRIBER")
	if subscriber == "" {
		subscriber = "mailto:admin@example.com"
	}

	return &Pusher{
		store:           st,
		subscriber:      subscriber,
		vapidPublicKey:  publicKey,
		vapidPrivateKey: privateKey,
	}, nil
}

// PublicKey returns the public VAPID key browsers subscribe with.
func (p *Pusher) PublicKey() string {
	return p.vapidPublicKey
}

// NotifyUser sends the payload to every subscription the user holds.
// Delivery failures are logged, never returned: a dead endpoint must not
// fail the reminder. Subscriptions the push service reports gone are pruned.
func (p *Pusher) NotifyUser(ctx context.Context, userID int64, payload Payload) {
	subs, err := p.store.GetPushSubscriptions(ctx, userID)
	if err != nil {
		log.Printf("Failed to get subscriptions: %v", err)
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal push payload: %v", err)
		return
	}

	for _, sub := range subs {
		s := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}

		resp, err := webpush.SendNotification(body, s, &webpush.Options{
			Subscriber:      p.subscriber,
			VAPIDPublicKey:  p.vapidPublicKey,
			VAPIDPrivateKey: p.vapidPrivateKey,
			TTL:             30,
		})
		if err != nil {
			metrics.PushFailed.Inc()
			log.Printf("Failed to send push to %s: %v", sub.Endpoint, err)
			continue
		}

		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			metrics.PushFailed.Inc()
			log.Printf("Pruning gone subscription %s", sub.Endpoint)
			if err := p.store.DeletePushSubscription(ctx, sub.UserID, sub.Endpoint); err != nil {
				log.Printf("Failed to prune subscription: %v", err)
			}
		} else {
			metrics.PushSent.Inc()
		}
		resp.Body.Close()
	}
}
