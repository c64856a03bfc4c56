// Package metrics exposes the service's Prometheus counters.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RemindersScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminders_scheduled_total",
		Help: "Reminders armed on the in-process scheduler.",
	})
	RemindersFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminders_fired_total",
		Help: "Reminders that fired on time.",
	})
	RemindersMissed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminders_missed_total",
		Help: "Reminders found overdue at boot and fired late.",
	})
	PushSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_notifications_sent_total",
		Help: "Web Push notifications accepted by the push service.",
	})
	PushFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_notifications_failed_total",
		Help: "Web Push deliveries that errored or hit a dead endpoint.",
	})
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "status"})
)

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Instrument counts requests to a route by response status.
func Instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	}
}
