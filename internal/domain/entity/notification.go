// Package entity defines the core domain entities and validation logic for the engine.
// It contains the fundamental business objects such as Notification, DeliveryRecord and
// Recipient, along with their validation rules and domain-specific errors.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// maxTitleLength bounds notification titles (mirrors the schema constraint).
const maxTitleLength = 200

// Category classifies a notification for client-side grouping and filtering.
type Category string

// Valid notification categories.
const (
	CategoryAcademic Category = "academic"
	CategoryBehavior Category = "behavior"
	CategoryPayment  Category = "payment"
	CategoryGeneral  Category = "general"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryAcademic, CategoryBehavior, CategoryPayment, CategoryGeneral:
		return true
	}
	return false
}

// TargetMode selects how the recipient set of a notification is resolved.
type TargetMode string

const (
	// TargetAuto resolves recipients dynamically at send time to all guardians
	// associated with the notification's tenant.
	TargetAuto TargetMode = "auto"

	// TargetExplicit uses the stored, non-empty recipient id list.
	TargetExplicit TargetMode = "explicit"
)

// Valid reports whether the target mode is one of the known values.
func (m TargetMode) Valid() bool {
	return m == TargetAuto || m == TargetExplicit
}

// Notification represents one message addressed to a tenant (school).
// All recipients resolve within the owning tenant's scope; delivery state per
// recipient lives in DeliveryRecord.
type Notification struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Title      string
	Body       string
	Category   Category
	TargetMode TargetMode
	Payload    map[string]any

	// sent_via_* flags are monotonic: set true once at least one recipient was
	// reached on that channel, never reset by resend or retry.
	SentViaPush  bool
	SentViaEmail bool
	SentViaSMS   bool

	CreatedAt time.Time
	// SentAt is nil until the first dispatch pass that reaches any recipient
	// completes, and is written exactly once.
	SentAt *time.Time
}

// SentVia reports the monotonic sent flag for the given channel.
func (n *Notification) SentVia(ch Channel) bool {
	switch ch {
	case ChannelPush:
		return n.SentViaPush
	case ChannelEmail:
		return n.SentViaEmail
	case ChannelSMS:
		return n.SentViaSMS
	}
	return false
}

// Validate checks the notification fields against domain rules.
// Returns a ValidationError describing the first offending field.
func (n *Notification) Validate() error {
	if n.TenantID == uuid.Nil {
		return &ValidationError{Field: "tenantID", Message: "is required"}
	}
	if n.Title == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	if len([]rune(n.Title)) > maxTitleLength {
		return &ValidationError{Field: "title", Message: "must be 200 characters or fewer"}
	}
	if n.Body == "" {
		return &ValidationError{Field: "body", Message: "is required"}
	}
	if !n.Category.Valid() {
		return &ValidationError{Field: "category", Message: "must be academic, behavior, payment or general"}
	}
	if !n.TargetMode.Valid() {
		return &ValidationError{Field: "targetMode", Message: "must be auto or explicit"}
	}
	return nil
}
