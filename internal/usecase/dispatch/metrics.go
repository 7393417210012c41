package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for dispatch monitoring
var (
	// dispatchAttemptTotal tracks send attempts per channel
	dispatchAttemptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_attempt_total",
			Help: "Total number of channel send attempts",
		},
		[]string{"channel"},
	)

	// dispatchResultTotal tracks send results per channel
	dispatchResultTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_result_total",
			Help: "Total number of channel send results",
		},
		[]string{"channel", "status"}, // status: success|failure
	)

	// dispatchDuration tracks per-channel send duration
	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_duration_seconds",
			Help:    "Channel send duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"channel"},
	)

	// dispatchSkippedTotal tracks channels skipped without an attempt
	dispatchSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_skipped_total",
			Help: "Total number of channel sends skipped without an attempt",
		},
		[]string{"channel", "reason"}, // reason: gate|already_delivered|no_sender|circuit_open
	)

	// dispatchBreakerOpenTotal tracks sends rejected by an open circuit breaker
	dispatchBreakerOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_circuit_breaker_open_total",
			Help: "Total number of sends rejected by an open circuit breaker",
		},
		[]string{"channel"},
	)

	// dispatchLedgerFailureTotal tracks delivery ledger write failures
	dispatchLedgerFailureTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_ledger_failure_total",
			Help: "Total number of delivery ledger write failures",
		},
	)

	// activeDispatchWorkers tracks currently running per-recipient send units
	activeDispatchWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_active_workers",
			Help: "Number of per-recipient send units currently running",
		},
	)
)

// recordAttempt records the start of a channel send attempt.
func recordAttempt(channel string) {
	dispatchAttemptTotal.WithLabelValues(channel).Inc()
}

// recordSuccess records a successful channel send and its duration.
func recordSuccess(channel string, duration time.Duration) {
	dispatchResultTotal.WithLabelValues(channel, "success").Inc()
	dispatchDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// recordFailure records a failed channel send and its duration.
func recordFailure(channel string, duration time.Duration) {
	dispatchResultTotal.WithLabelValues(channel, "failure").Inc()
	dispatchDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// recordSkipped records a channel that was skipped without a provider call.
func recordSkipped(channel, reason string) {
	dispatchSkippedTotal.WithLabelValues(channel, reason).Inc()
}

// recordBreakerOpen records a send rejected by an open circuit breaker.
func recordBreakerOpen(channel string) {
	dispatchBreakerOpenTotal.WithLabelValues(channel).Inc()
	dispatchSkippedTotal.WithLabelValues(channel, "circuit_open").Inc()
}

// recordLedgerFailure records a delivery ledger write failure.
func recordLedgerFailure() {
	dispatchLedgerFailureTotal.Inc()
}
