package dispatch

import (
	"school-notify/internal/domain/entity"
)

// Gate decides whether a channel may be attempted for a recipient at send
// time. The decision is re-evaluated on every pass, including retries, so an
// opt-out that happens between the original send and a retry suppresses the
// retry.
type Gate interface {
	Allows(r *entity.Recipient, ch entity.Channel) bool
}

// PreferenceGate is the default gate: a channel is allowed only when the
// recipient has opted in AND has a usable address for it. A missing address
// wins over a positive opt-in flag.
type PreferenceGate struct{}

// Allows reports whether ch may be attempted for r.
func (PreferenceGate) Allows(r *entity.Recipient, ch entity.Channel) bool {
	if r == nil {
		return false
	}
	return r.Reachable(ch)
}
