// Package inbox provides the read-side use cases over notifications and the
// delivery ledger: the guardian-facing inbox and the staff-facing delivery
// views.
package inbox

import "errors"

// Sentinel errors for inbox use case operations.
var (
	// ErrNotificationNotFound indicates that the notification does not exist
	// or is not visible to the requesting recipient. The two cases are
	// deliberately indistinguishable so callers cannot probe for existence
	// of notifications outside their scope.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrRecipientNotFound indicates that the recipient does not exist.
	ErrRecipientNotFound = errors.New("recipient not found")
)
