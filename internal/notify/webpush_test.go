package notify_test

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"med-reminder-go/internal/metrics"
	"med-reminder-go/internal/notify"
	"med-reminder-go/internal/store"
)

func newPushEnv(t *testing.T) (*notify.Pusher, store.Store, int64) {
	t.Helper()

	st, err := store.OpenJSON(filepath.Join(t.TempDir(), "reminders.json"))
	if err != nil {
		t.Fatalf("OpenJSON failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	u, err := st.CreateUser(context.Background(), "alice", "hunter22", "user")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	p, err := notify.NewPusher(st)
	if err != nil {
		t.Fatalf("NewPusher failed: %v", err)
	}
	return p, st, u.ID
}

// browserKeys builds the key pair a subscribing browser would hand us.
func browserKeys(t *testing.T) (p256dh, auth string) {
	t.Helper()

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("rand.Read failed: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
		base64.RawURLEncoding.EncodeToString(secret)
}

func TestNotifyUserCountsDeliveries(t *testing.T) {
	p, st, userID := newPushEnv(t)
	ctx := context.Background()

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p256dh, auth := browserKeys(t)
	if err := st.SavePushSubscription(ctx, userID, srv.URL, p256dh, auth); err != nil {
		t.Fatalf("SavePushSubscription failed: %v", err)
	}

	sentBefore := testutil.ToFloat64(metrics.PushSent)
	failedBefore := testutil.ToFloat64(metrics.PushFailed)

	p.NotifyUser(ctx, userID, notify.Payload{Title: "Medication reminder", Body: "Insulin"})

	if hits != 1 {
		t.Fatalf("expected 1 delivery, endpoint saw %d", hits)
	}
	if got := testutil.ToFloat64(metrics.PushSent) - sentBefore; got != 1 {
		t.Fatalf("expected sent counter +1, got %+v", got)
	}
	if got := testutil.ToFloat64(metrics.PushFailed) - failedBefore; got != 0 {
		t.Fatalf("expected failed counter unchanged, got %+v", got)
	}
}

func TestNotifyUserCountsFailures(t *testing.T) {
	p, st, userID := newPushEnv(t)
	ctx := context.Background()

	// Keys that cannot decode to an EC point fail before any request is made.
	if err := st.SavePushSubscription(ctx, userID, "https://push.example/dead", "bogus", "bogus"); err != nil {
		t.Fatalf("SavePushSubscription failed: %v", err)
	}

	sentBefore := testutil.ToFloat64(metrics.PushSent)
	failedBefore := testutil.ToFloat64(metrics.PushFailed)

	p.NotifyUser(ctx, userID, notify.Payload{Title: "Medication reminder", Body: "Insulin"})

	if got := testutil.ToFloat64(metrics.PushFailed) - failedBefore; got != 1 {
		t.Fatalf("expected failed counter +1, got %+v", got)
	}
	if got := testutil.ToFloat64(metrics.PushSent) - sentBefore; got != 0 {
		t.Fatalf("expected sent counter unchanged, got %+v", got)
	}
}

func TestNotifyUserPrunesGoneSubscriptions(t *testing.T) {
	p, st, userID := newPushEnv(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	p256dh, auth := browserKeys(t)
	if err := st.SavePushSubscription(ctx, userID, srv.URL, p256dh, auth); err != nil {
		t.Fatalf("SavePushSubscription failed: %v", err)
	}

	sentBefore := testutil.ToFloat64(metrics.PushSent)
	failedBefore := testutil.ToFloat64(metrics.PushFailed)

	p.NotifyUser(ctx, userID, notify.Payload{Title: "Medication reminder", Body: "Insulin"})

	subs, err := st.GetPushSubscriptions(ctx, userID)
	if err != nil {
		t.Fatalf("GetPushSubscriptions failed: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("gone subscription was not pruned: %+v", subs)
	}
	if got := testutil.ToFloat64(metrics.PushFailed) - failedBefore; got != 1 {
		t.Fatalf("expected failed counter +1, got %+v", got)
	}
	if got := testutil.ToFloat64(metrics.PushSent) - sentBefore; got != 0 {
		t.Fatalf("expected sent counter unchanged, got %+v", got)
	}
}
