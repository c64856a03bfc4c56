package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"med-reminder-go/internal/handlers"
	"med-reminder-go/internal/metrics"
	"med-reminder-go/internal/models"
	"med-reminder-go/internal/notify"
	"med-reminder-go/internal/scheduler"
	"med-reminder-go/internal/store"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	ctx := context.Background()

	// Reminder/account store: sqlite (default), json or postgres.
	st, err := openStore(ctx)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	// Redis event feed (optional).
	var events *store.RedisEvents
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisDB := 0
		if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil {
				redisDB = db
			}
		}
		events = store.NewRedisEvents(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		})
		if err := events.Ping(ctx); err != nil {
			log.Printf("Redis unreachable at %s, event feed disabled: %v", redisAddr, err)
			events = nil
		}
	} else {
		log.Println("REDIS_ADDR not set, event feed disabled")
	}

	// Web push with VAPID keys from env (generated when missing).
	pusher, err := notify.NewPusher(st)
	if err != nil {
		log.Fatalf("Failed to initialize web push: %v", err)
	}

	// One in-process timer per pending reminder.
	sched := scheduler.New(func(r models.Reminder, overdue bool) {
		fireCtx := context.Background()
		if err := st.MarkFired(fireCtx, r.ID); err != nil {
			log.Printf("Failed to mark reminder %d fired: %v", r.ID, err)
		}
		if overdue {
			metrics.RemindersMissed.Inc()
		} else {
			metrics.RemindersFired.Inc()
		}

		pusher.NotifyUser(fireCtx, r.UserID, notify.Payload{
			Title:      "Medication reminder",
			Body:       r.Name,
			Type:       r.Type,
			Tone:       r.Tone,
			ReminderID: r.ID,
		})

		if events != nil {
			if _, err := events.AddEvent(fireCtx, models.ReminderEvent{
				ReminderID: r.ID,
				UserID:     r.UserID,
				Name:       r.Name,
			}); err != nil {
				log.Printf("Failed to record reminder event: %v", err)
			}
		}
	})
	defer sched.Stop()

	restored, overdue, err := sched.RestoreAll(ctx, st)
	if err != nil {
		log.Fatalf("Failed to restore reminders: %v", err)
	}
	log.Printf("Restored %d pending reminder(s), %d overdue", restored, overdue)

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		log.Fatalf("Failed to create upload dir: %v", err)
	}

	h := handlers.NewHandler(st, events, sched, pusher, uploadDir)

	// Initialize default admin user
	h.InitAdmin(ctx)

	// Public routes
	http.HandleFunc("/healthz", h.HealthzHandler)
	http.HandleFunc("/api/login", metrics.Instrument("login", h.LoginHandler))
	http.HandleFunc("/api/register", metrics.Instrument("register", h.RegisterHandler))
	http.HandleFunc("/api/logout", h.LogoutHandler)
	http.HandleFunc("/api/vapid-key", h.GetVAPIDKeyHandler)
	http.HandleFunc("/api/prescriptions/parse", metrics.Instrument("parse", h.ParsePrescriptionHandler))

	// Reminder routes (session required)
	http.HandleFunc("/api/reminders", metrics.Instrument("reminders", handlers.AuthMiddleware(h.RemindersHandler)))
	http.HandleFunc("/api/reminders/", metrics.Instrument("reminder_item", handlers.AuthMiddleware(h.ReminderItemHandler)))
	http.HandleFunc("/api/prescriptions/import", metrics.Instrument("import", handlers.AuthMiddleware(h.ImportPrescriptionHandler)))
	http.HandleFunc("/api/push/subscribe", handlers.AuthMiddleware(h.SubscribePushHandler))
	http.HandleFunc("/api/events", handlers.AuthMiddleware(h.EventsHandler))
	http.HandleFunc("/api/history", handlers.AuthMiddleware(h.HistoryHandler))
	http.HandleFunc("/api/tones", handlers.AuthMiddleware(h.ToneUploadHandler))
	http.HandleFunc("/api/reports", metrics.Instrument("reports", handlers.AuthMiddleware(h.ReportUploadHandler)))

	// Profile routes
	http.HandleFunc("/api/profile", handlers.AuthMiddleware(h.ProfileHandler))
	http.HandleFunc("/api/profile/password", handlers.AuthMiddleware(h.ChangePasswordHandler))
	http.HandleFunc("/api/2fa/setup", handlers.AuthMiddleware(h.Setup2FAHandler))
	http.HandleFunc("/api/2fa/verify", handlers.AuthMiddleware(h.Verify2FAHandler))
	http.HandleFunc("/api/2fa/disable", handlers.AuthMiddleware(h.Disable2FAHandler))

	// Admin routes (protected)
	http.HandleFunc("/api/admin/users", handlers.AuthMiddleware(handlers.AdminMiddleware(h.AdminUsersHandler)))
	http.HandleFunc("/api/admin/users/", handlers.AuthMiddleware(handlers.AdminMiddleware(h.AdminUserItemHandler)))
	http.HandleFunc("/api/admin/purge", handlers.AuthMiddleware(handlers.AdminMiddleware(h.AdminPurgeHandler)))
	http.HandleFunc("/api/admin/audit", handlers.AuthMiddleware(handlers.AdminMiddleware(h.AdminAuditHandler)))

	// Uploaded tones and reports
	fs := http.FileServer(http.Dir(uploadDir))
	http.Handle("/uploads/", http.StripPrefix("/uploads/", fs))

	// Prometheus metrics
	http.Handle("/metrics", metrics.Handler())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Println("Listening on :" + port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func openStore(ctx context.Context) (store.Store, error) {
	driver := os.Getenv("STORE_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite":
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "data/reminders.db"
		}
		return store.OpenSQLite(path)

	case "json":
		path := os.Getenv("JSON_STORE_PATH")
		if path == "" {
			path = "data/reminders.json"
		}
		return store.OpenJSON(path)

	case "postgres":
		databaseURL := os.Getenv("DATABASE_URL")
		if databaseURL == "" {
			log.Fatal("DATABASE_URL environment variable is required for the postgres driver")
		}
		pg, err := store.NewPostgresStore(databaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.RunMigrations(ctx); err != nil {
			return nil, err
		}
		log.Println("Database migrations completed")
		return pg, nil

	default:
		log.Fatalf("Unknown STORE_DRIVER %q (want sqlite, json or postgres)", driver)
		return nil, nil
	}
}
