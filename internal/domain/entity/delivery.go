package entity

import (
	"time"

	"github.com/google/uuid"
)

// Channel identifies one delivery mechanism.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Channels returns all delivery channels in dispatch order.
func Channels() []Channel {
	return []Channel{ChannelPush, ChannelEmail, ChannelSMS}
}

// Valid reports whether the channel is one of the known values.
func (c Channel) Valid() bool {
	return c == ChannelPush || c == ChannelEmail || c == ChannelSMS
}

// ChannelState is the per-channel delivery status on a DeliveryRecord.
type ChannelState string

const (
	// StateNotAttempted means the channel was never tried for this recipient,
	// typically because preferences or a missing address disallowed it.
	StateNotAttempted ChannelState = "not_attempted"

	// StateDelivered means the provider accepted the message. Terminal: a
	// delivered channel is never re-sent.
	StateDelivered ChannelState = "delivered"

	// StateFailed means the last attempt was rejected or errored; the error
	// text is kept on the record and the channel is eligible for retry.
	StateFailed ChannelState = "failed"
)

// ChannelDelivery holds one channel's slice of a DeliveryRecord.
type ChannelDelivery struct {
	Status            ChannelState
	Error             string
	ProviderMessageID string
	// Attempts counts every send attempt for this (record, channel) pair,
	// persisted so retry budgets survive process restarts.
	Attempts int
}

// DeliveryRecord is the durable per-(notification, recipient) unit of truth.
// At most one record exists per pair regardless of how many times dispatch or
// retry runs; the (NotificationID, RecipientID) uniqueness constraint is the
// concurrency boundary for racing workers.
type DeliveryRecord struct {
	ID             int64
	NotificationID uuid.UUID
	RecipientID    uuid.UUID

	Push  ChannelDelivery
	Email ChannelDelivery
	SMS   ChannelDelivery

	// DeliveredAt is set when the first channel reaches the recipient.
	DeliveredAt *time.Time
	// ReadAt is set by an explicit recipient action, independent of delivery
	// success. The first value written is terminal.
	ReadAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Channel returns the mutable per-channel slice for ch, or nil for an unknown
// channel.
func (r *DeliveryRecord) Channel(ch Channel) *ChannelDelivery {
	switch ch {
	case ChannelPush:
		return &r.Push
	case ChannelEmail:
		return &r.Email
	case ChannelSMS:
		return &r.SMS
	}
	return nil
}

// Delivered reports whether at least one channel reached the recipient.
func (r *DeliveryRecord) Delivered() bool {
	return r.Push.Status == StateDelivered ||
		r.Email.Status == StateDelivered ||
		r.SMS.Status == StateDelivered
}

// ChannelOutcome is the result of one send attempt, written back to the ledger.
type ChannelOutcome struct {
	Delivered         bool
	ProviderMessageID string
	Error             string
}

// State maps the outcome to the channel state it transitions the record to.
func (o ChannelOutcome) State() ChannelState {
	if o.Delivered {
		return StateDelivered
	}
	return StateFailed
}

// DeliverySummary aggregates ledger state for one notification.
type DeliverySummary struct {
	TargetCount    int
	PushDelivered  int
	EmailDelivered int
	SMSDelivered   int
	FailedAny      int
	ReadCount      int
}
