// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bandspace"

var (
	bookingsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bookings_created_total",
		Help:      "Bookings created, by event type and initial state.",
	}, []string{"type", "state"})

	approvalDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "approval_decisions_total",
		Help:      "Recorded approval decisions.",
	}, []string{"decision"})

	bookingResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_resolutions_total",
		Help:      "Bookings leaving PENDING_APPROVALS or being cancelled, by resulting state.",
	}, []string{"state"})

	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_sent_total",
		Help:      "Notification deliveries by type, channel and outcome.",
	}, []string{"type", "channel", "status"})

	schedulerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_job_runs_total",
		Help:      "Scheduled job executions by job and outcome.",
	}, []string{"job", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

func BookingCreated(eventType, state string) {
	bookingsCreated.WithLabelValues(eventType, state).Inc()
}

func ApprovalDecided(decision string) {
	approvalDecisions.WithLabelValues(decision).Inc()
}

func BookingResolved(state string) {
	bookingResolutions.WithLabelValues(state).Inc()
}

func NotificationSent(notificationType, channel string, err error) {
	notificationsSent.WithLabelValues(notificationType, channel, outcome(err)).Inc()
}

func SchedulerRun(job string, err error) {
	schedulerRuns.WithLabelValues(job, outcome(err)).Inc()
}

func ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	httpDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
