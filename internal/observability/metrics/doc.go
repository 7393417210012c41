// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - Business metrics (notifications, dispatch passes, read marks)
//   - Database query metrics
//   - Application performance metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "school-notify/internal/observability/metrics"
//
//	func runDispatchPass() {
//	    start := time.Now()
//	    // ... dispatch to recipients ...
//	    targets := 120
//
//	    metrics.RecordDispatchPass("reached", targets, time.Since(start))
//	}
package metrics
