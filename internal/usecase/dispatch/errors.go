package dispatch

import "errors"

// Sentinel errors for dispatch operations.
var (
	// ErrNotificationNotFound indicates the notification does not exist.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrTenantNotFound indicates the owning tenant does not exist.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrNoSenders indicates the engine was built without any channel sender.
	ErrNoSenders = errors.New("no channel senders configured")
)
