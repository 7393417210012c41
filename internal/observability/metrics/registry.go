package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Business metrics track application-specific operations
var (
	// NotificationsCreatedTotal counts created notifications by category and targeting mode
	NotificationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of notifications created",
		},
		[]string{"category", "target_mode"},
	)

	// DispatchPassesTotal counts dispatch passes by result
	DispatchPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_passes_total",
			Help: "Total number of dispatch passes",
		},
		[]string{"result"}, // result: reached, empty, error
	)

	// DispatchPassDuration measures the duration of one full dispatch pass
	DispatchPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_pass_duration_seconds",
			Help:    "Time taken for one full dispatch pass",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	// DispatchPassTargets measures the resolved recipient count per pass
	DispatchPassTargets = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_pass_targets",
			Help:    "Number of recipients resolved per dispatch pass",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// ReadMarksTotal counts notifications marked read by recipients
	ReadMarksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "read_marks_total",
			Help: "Total number of notifications marked read",
		},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)
