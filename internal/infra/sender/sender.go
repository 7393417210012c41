// Package sender provides the delivery channel implementations used by the
// dispatch engine. It defines the Sender interface which allows different
// provider gateways (push, email, SMS) to be used interchangeably through
// dependency injection, together with a no-op implementation for channels
// that are disabled at wiring time.
//
// Ordinary provider failures (rejected address, gateway 4xx/5xx, timeout)
// are reported through the Result value, never as a returned error, so the
// fan-out can record them per channel and keep going.
package sender

import (
	"context"

	"school-notify/internal/domain/entity"
)

// Message is the rendered content handed to a channel. Rendering (tenant
// prefix, truncation) happens in the dispatch layer; senders transport the
// message as-is.
type Message struct {
	Title string
	Body  string

	// Payload is opaque structured data carried to clients. Only the push
	// channel forwards it; email and SMS ignore it.
	Payload map[string]any
}

// Result is the outcome of one send attempt.
type Result struct {
	// OK reports whether the provider accepted the message.
	OK bool

	// ProviderMessageID correlates the attempt with the provider's own logs.
	// Empty when the provider returned none or the attempt failed.
	ProviderMessageID string

	// Error holds the provider or transport error text for failed attempts,
	// recorded verbatim on the delivery record.
	Error string
}

// Sender delivers a rendered message to one recipient address on one channel.
//
// Implementations must:
//   - Be safe for concurrent use by multiple dispatch workers
//   - Apply their own rate limiting against the provider
//   - Retry transient failures internally before reporting a failed Result
//   - Respect context cancellation (reported as a failed Result)
//   - Never panic or return delivery failures as Go errors
type Sender interface {
	// Channel returns the delivery channel this sender serves.
	Channel() entity.Channel

	// Send attempts delivery of msg to the given address (push token, email
	// address or phone number depending on the channel).
	Send(ctx context.Context, address string, msg Message) Result
}

// failure builds a failed Result from an error.
func failure(err error) Result {
	return Result{OK: false, Error: err.Error()}
}
