package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"school-notify/internal/pkg/config"
)

// WorkerMetrics provides Prometheus metrics for the worker component.
// It embeds the standard ConfigMetrics for configuration monitoring and adds
// worker-specific metrics for cron job execution tracking.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp: Unix timestamp of last configuration load
//   - worker_config_validation_errors_total: Total validation errors by field
//   - worker_config_fallbacks_total: Total fallback operations by field
//   - worker_config_fallback_active: 1 if any fallback active, 0 otherwise
//
// Worker-specific metrics:
//   - worker_cron_job_runs_total: Total cron job runs by job and status
//   - worker_cron_job_duration_seconds: Duration histogram of cron job execution
//   - worker_cron_job_records_processed_total: Total delivery records processed per job run
//   - worker_cron_job_last_success_timestamp: Unix timestamp of last successful run per job
//
// Example usage:
//
//	metrics := NewWorkerMetrics()
//	metrics.MustRegister()
//
//	// Record configuration load
//	metrics.RecordLoadTimestamp()
//
//	// Record cron job execution
//	start := time.Now()
//	defer func() {
//	    duration := time.Since(start).Seconds()
//	    metrics.RecordJobRun("retry", "success")
//	    metrics.RecordJobDuration("retry", duration)
//	    metrics.RecordRecordsProcessed("retry", 42)
//	    metrics.RecordLastSuccess("retry")
//	}()
type WorkerMetrics struct {
	// Embedded configuration metrics
	*config.ConfigMetrics

	// CronJobRunsTotal counts the total number of cron job runs.
	// Type: Counter
	// Labels: job (retry, sweep), status (success, failure)
	// Usage: Increment after each job run based on success/failure
	CronJobRunsTotal *prometheus.CounterVec

	// CronJobDurationSeconds measures the duration of cron job execution.
	// Type: Histogram
	// Labels: job (retry, sweep)
	// Buckets: 1s, 5s, 30s, 1m, 5m, 15m, 30m
	// Usage: Observe duration at the end of each job run
	CronJobDurationSeconds *prometheus.HistogramVec

	// CronJobRecordsProcessedTotal counts the delivery records or notifications
	// scanned per job run.
	// Type: Counter
	// Labels: job (retry, sweep)
	// Usage: Add the scanned count after each successful job
	CronJobRecordsProcessedTotal *prometheus.CounterVec

	// CronJobLastSuccessTimestamp records the Unix timestamp of the last successful run.
	// Type: Gauge
	// Labels: job (retry, sweep)
	// Usage: Set to current time when a job completes successfully
	CronJobLastSuccessTimestamp *prometheus.GaugeVec
}

// NewWorkerMetrics creates a new WorkerMetrics instance with all metrics initialized.
// Metrics are created but not registered with Prometheus. Call MustRegister() to register.
//
// Returns:
//   - *WorkerMetrics: Initialized metrics ready for registration
//
// Example:
//
//	metrics := NewWorkerMetrics()
//	metrics.MustRegister()  // Register with Prometheus
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		CronJobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_cron_job_runs_total",
			Help: "Total number of cron job runs by job and status (success/failure)",
		}, []string{"job", "status"}),

		CronJobDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_cron_job_duration_seconds",
			Help:    "Duration of cron job execution in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800}, // 1s, 5s, 30s, 1m, 5m, 15m, 30m
		}, []string{"job"}),

		CronJobRecordsProcessedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_cron_job_records_processed_total",
			Help: "Total number of records scanned across all cron job runs",
		}, []string{"job"}),

		CronJobLastSuccessTimestamp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_cron_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful cron job run",
		}, []string{"job"}),
	}
}

// MustRegister is a no-op method for API compatibility.
// Metrics are automatically registered via promauto when created in NewWorkerMetrics.
//
// This method exists to maintain consistency with the expected metrics initialization pattern:
//
//	metrics := NewWorkerMetrics()
//	metrics.MustRegister()
//
// Even though registration happens automatically, this explicit call makes the
// initialization intent clear and maintains compatibility with future changes.
func (m *WorkerMetrics) MustRegister() {
	// No-op: metrics are auto-registered via promauto
}

// RecordJobRun increments the job run counter for the given job and status.
// Status should be either "success" or "failure".
//
// Parameters:
//   - job: Job name ("retry" or "sweep")
//   - status: Job execution status ("success" or "failure")
//
// Example:
//
//	if err := runJob(); err != nil {
//	    metrics.RecordJobRun("retry", "failure")
//	} else {
//	    metrics.RecordJobRun("retry", "success")
//	}
func (m *WorkerMetrics) RecordJobRun(job, status string) {
	m.CronJobRunsTotal.WithLabelValues(job, status).Inc()
}

// RecordJobDuration observes the duration of a cron job execution.
// Duration should be in seconds.
//
// Parameters:
//   - job: Job name ("retry" or "sweep")
//   - seconds: Job execution duration in seconds
//
// Example:
//
//	start := time.Now()
//	// ... execute job ...
//	duration := time.Since(start).Seconds()
//	metrics.RecordJobDuration("retry", duration)
func (m *WorkerMetrics) RecordJobDuration(job string, seconds float64) {
	m.CronJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// RecordRecordsProcessed adds the number of records scanned to the total counter.
//
// Parameters:
//   - job: Job name ("retry" or "sweep")
//   - count: Number of records scanned in this job run
//
// Example:
//
//	summary, err := coordinator.RetryFailed(ctx)
//	if err == nil {
//	    metrics.RecordRecordsProcessed("retry", summary.Scanned)
//	}
func (m *WorkerMetrics) RecordRecordsProcessed(job string, count int) {
	m.CronJobRecordsProcessedTotal.WithLabelValues(job).Add(float64(count))
}

// RecordLastSuccess records the current time as the last successful job completion.
//
// Example:
//
//	if err := runJob(); err == nil {
//	    metrics.RecordLastSuccess("retry")
//	}
func (m *WorkerMetrics) RecordLastSuccess(job string) {
	m.CronJobLastSuccessTimestamp.WithLabelValues(job).SetToCurrentTime()
}
