package redeliver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry and sweep job monitoring
var (
	// retryScannedTotal tracks ledger records picked up by the retry job
	retryScannedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redeliver_scanned_total",
			Help: "Total number of failed channel deliveries picked up for retry",
		},
		[]string{"channel"},
	)

	// retryRedeliveredTotal tracks retries that reached the recipient
	retryRedeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redeliver_delivered_total",
			Help: "Total number of retries that reached the recipient",
		},
		[]string{"channel"},
	)

	// retryRunDuration tracks full retry job runs
	retryRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "redeliver_run_duration_seconds",
			Help:    "Duration of one retry job run in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300},
		},
	)

	// sweepDispatchedTotal tracks unsent notifications picked up by the sweep
	sweepDispatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redeliver_sweep_dispatched_total",
			Help: "Total number of unsent notifications re-dispatched by the sweep job",
		},
	)
)

func recordRetryScanned(channel string)   { retryScannedTotal.WithLabelValues(channel).Inc() }
func recordRetryDelivered(channel string) { retryRedeliveredTotal.WithLabelValues(channel).Inc() }
func recordRetryRun(d time.Duration)      { retryRunDuration.Observe(d.Seconds()) }
func recordSweepDispatched()              { sweepDispatchedTotal.Inc() }
