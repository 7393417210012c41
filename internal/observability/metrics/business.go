package metrics

import (
	"time"
)

// RecordNotificationCreated records a newly created notification.
// Category should be one of the notification categories and targetMode
// either "auto" or "explicit".
func RecordNotificationCreated(category, targetMode string) {
	NotificationsCreatedTotal.WithLabelValues(category, targetMode).Inc()
}

// RecordDispatchPass records the outcome of one full dispatch pass.
// Result should be "reached", "empty", or "error".
func RecordDispatchPass(result string, targets int, duration time.Duration) {
	DispatchPassesTotal.WithLabelValues(result).Inc()
	DispatchPassDuration.Observe(duration.Seconds())
	if targets > 0 {
		DispatchPassTargets.Observe(float64(targets))
	}
}

// RecordReadMark records a notification being marked read by a recipient.
func RecordReadMark() {
	ReadMarksTotal.Inc()
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "select_notifications", "insert_delivery").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
