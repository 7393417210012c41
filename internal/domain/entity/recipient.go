package entity

import (
	"time"

	"github.com/google/uuid"
)

// Role classifies a recipient account within a tenant.
type Role string

const (
	RoleGuardian Role = "guardian"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleGuardian || r == RoleStaff || r == RoleAdmin
}

// Recipient is a deliverable account. TenantID is nil for platform admin
// accounts that are not homed in any single school.
type Recipient struct {
	ID       uuid.UUID
	TenantID *uuid.UUID
	Role     Role
	Name     string

	// Channel addresses. Empty string means the recipient has no address for
	// that channel and it must be skipped, not failed.
	PushToken string
	Email     string
	Phone     string

	PushOptIn  bool
	EmailOptIn bool
	SMSOptIn   bool

	CreatedAt time.Time
}

// Address returns the recipient's address for ch, empty when absent.
func (r *Recipient) Address(ch Channel) string {
	switch ch {
	case ChannelPush:
		return r.PushToken
	case ChannelEmail:
		return r.Email
	case ChannelSMS:
		return r.Phone
	}
	return ""
}

// OptedIn reports the recipient's preference for ch.
func (r *Recipient) OptedIn(ch Channel) bool {
	switch ch {
	case ChannelPush:
		return r.PushOptIn
	case ChannelEmail:
		return r.EmailOptIn
	case ChannelSMS:
		return r.SMSOptIn
	}
	return false
}

// Reachable reports whether ch may be attempted for this recipient: the
// recipient must both opt in and carry an address. A missing address is a
// skip, never a failure.
func (r *Recipient) Reachable(ch Channel) bool {
	return r.OptedIn(ch) && r.Address(ch) != ""
}

// BelongsTo reports direct tenant membership. Guardians linked through
// dependents only are not direct members and return false here.
func (r *Recipient) BelongsTo(tenantID uuid.UUID) bool {
	return r.TenantID != nil && *r.TenantID == tenantID
}

// Dependent is a student enrolled in a tenant. Dependents are never delivery
// targets themselves; they route notifications to their linked guardians.
type Dependent struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	CreatedAt time.Time
}
