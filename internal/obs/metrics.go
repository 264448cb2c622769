package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Общие HTTP-метрики
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets, // [0.005..10]
		},
		[]string{"method", "path", "status"},
	)
)

// Доменные метрики трекера
var (
	authzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_authz_decisions_total",
			Help: "Authorization evaluator decisions by outcome.",
		},
		[]string{"check", "outcome"},
	)

	activitiesRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_activities_recorded_total",
			Help: "Activity entries appended, by type.",
		},
		[]string{"type"},
	)

	notificationsEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_notifications_enqueued_total",
		Help: "Notification queue entries created by fan-out.",
	})

	notificationsDeduplicated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_notifications_deduplicated_total",
		Help: "Fan-out inserts suppressed by the dedup key.",
	})
)

// Регистрация метрик в default-регистре.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		authzDecisions, activitiesRecorded,
		notificationsEnqueued, notificationsDeduplicated,
	)
}

// Хэндлер Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AuthzDecision counts one evaluator outcome.
func AuthzDecision(check string, allowed bool) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	authzDecisions.WithLabelValues(check, outcome).Inc()
}

// ActivityRecorded counts one appended activity entry.
func ActivityRecorded(activityType string) {
	activitiesRecorded.WithLabelValues(activityType).Inc()
}

// NotificationsEnqueued counts one created queue entry.
func NotificationsEnqueued() { notificationsEnqueued.Inc() }

// NotificationsDeduplicated counts one suppressed duplicate insert.
func NotificationsDeduplicated() { notificationsDeduplicated.Inc() }

// Обёртка для измерения RPS/latency/в полёте.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path // без роутера берём как есть
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter — локальная копия, чтобы знать код ответа.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush пробрасывается дальше, иначе SSE-хэндлер не увидит http.Flusher.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
