// Package metrics provides Prometheus metrics for the night-owls core.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters

	// BookingsTotal counts booking operations by outcome.
	BookingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nightowls_bookings_total",
		Help: "Total number of booking operations, by result.",
	}, []string{"result"})

	// OutboxDispatchTotal counts outbox send attempts by channel and resulting status.
	OutboxDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nightowls_outbox_dispatch_total",
		Help: "Total number of outbox dispatch attempts, by channel and status.",
	}, []string{"channel", "status"})

	// BroadcastRecipientsTotal counts outbox items fanned out by the broadcast engine.
	BroadcastRecipientsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nightowls_broadcast_recipients_total",
		Help: "Total number of broadcast recipient items enqueued.",
	})

	// JobRunsTotal counts scheduled job executions by job name and result.
	JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nightowls_job_runs_total",
		Help: "Total number of scheduled job runs, by job and result.",
	}, []string{"job", "result"})

	// HTTPRequestsTotal counts handled HTTP requests by method, route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nightowls_http_requests_total",
		Help: "Total number of HTTP requests, by method, route and status code.",
	}, []string{"method", "route", "status"})

	// Gauges

	// OutboxPending tracks the pending outbox depth observed at the last drain.
	OutboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nightowls_outbox_pending",
		Help: "Pending outbox items observed at the last dispatcher drain.",
	})

	// Histograms

	// JobDurationSeconds observes scheduled job run durations.
	JobDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nightowls_job_duration_seconds",
		Help:    "Duration of scheduled job runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
)

// RecordBooking increments the booking counter for the given outcome.
func RecordBooking(result string) {
	BookingsTotal.WithLabelValues(result).Inc()
}

// RecordDispatch increments the outbox dispatch counter.
func RecordDispatch(channel, status string) {
	OutboxDispatchTotal.WithLabelValues(channel, status).Inc()
}

// SetOutboxPending records the pending queue depth observed by the dispatcher.
func SetOutboxPending(n int) {
	OutboxPending.Set(float64(n))
}

// RecordBroadcastRecipients adds enqueued recipient items to the counter.
func RecordBroadcastRecipients(n int) {
	BroadcastRecipientsTotal.Add(float64(n))
}

// RecordJobRun increments the job run counter and observes the duration.
func RecordJobRun(job, result string, elapsed time.Duration) {
	JobRunsTotal.WithLabelValues(job, result).Inc()
	JobDurationSeconds.WithLabelValues(job).Observe(elapsed.Seconds())
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(method, route string, status int) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
