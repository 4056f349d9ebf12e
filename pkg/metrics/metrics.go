package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gymbooker"

var (
	// Bookings counts booking attempts by outcome.
	Bookings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bookings_total",
		Help:      "Booking attempts by outcome.",
	}, []string{"outcome"})

	Cancellations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cancellations_total",
		Help:      "Cancellations by outcome.",
	}, []string{"outcome"})

	StorageRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "storage_retries_total",
		Help:      "Transactions re-run after a transient storage error.",
	})

	RemindersScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminders_scheduled_total",
		Help:      "Reminder records written.",
	})

	RemindersDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminders_dispatched_total",
		Help:      "Reminder deliveries by result.",
	}, []string{"result"})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_sweep_duration_seconds",
		Help:      "Duration of dispatcher sweeps.",
		Buckets:   prometheus.DefBuckets,
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})
)
