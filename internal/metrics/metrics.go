package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "zeinbus"

var (
	once sync.Once

	bookingSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_submitted_total",
			Help:      "Count of booking submissions by outcome.",
		},
		[]string{"status"},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_rejected_total",
			Help:      "Count of booking forms rejected by validation code.",
		},
		[]string{"code"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled by riders.",
		},
	)

	backendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Latency of backend GraphQL calls.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"operation"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of local API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	snapshotRefresh = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_refresh_total",
			Help:      "Count of dashboard and area snapshot refreshes by outcome.",
		},
		[]string{"status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingSubmitted,
			bookingRejected,
			bookingCancelled,
			backendDuration,
			httpRequests,
			snapshotRefresh,
		)
	})
}

func IncBookingSubmitted(status string) {
	bookingSubmitted.WithLabelValues(status).Inc()
}

func IncBookingRejected(code string) {
	bookingRejected.WithLabelValues(code).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

// ObserveBackend records the latency of a backend call started at start.
func ObserveBackend(operation string, start time.Time) {
	backendDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncSnapshotRefresh(status string) {
	snapshotRefresh.WithLabelValues(status).Inc()
}
