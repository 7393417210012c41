// Package tracing provides OpenTelemetry tracing integration.
//
// This package provides distributed tracing capabilities using OpenTelemetry.
//
// Features:
//   - Dispatch pass tracing with per-pass spans
//   - Cross-component trace propagation via context
//   - Exporter selection deferred to the OTel SDK configuration
//
// Example usage:
//
//	import "school-notify/internal/observability/tracing"
//
//	func runPass(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "dispatch.send")
//	    defer span.End()
//	    // ... fan out to recipients ...
//	}
package tracing
