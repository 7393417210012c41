package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"school-notify/internal/domain/entity"
)

type DeliveryRepository interface {
	// GetOrCreate returns the delivery record for the pair, inserting it on
	// first use. The unique (notification_id, recipient_id) constraint makes
	// this safe under concurrent dispatch: racing workers converge on the
	// same row.
	GetOrCreate(ctx context.Context, notificationID, recipientID uuid.UUID) (*entity.DeliveryRecord, error)
	// RecordAttempt writes one channel attempt onto the record: status and
	// error from the outcome, attempts incremented, delivered_at set on the
	// first successful channel and left untouched afterwards.
	RecordAttempt(ctx context.Context, recordID int64, ch entity.Channel, outcome entity.ChannelOutcome) error
	// MarkRead sets read_at for the pair if not already set, creating the
	// record when dispatch never produced one. The first read wins; later
	// calls are no-ops.
	MarkRead(ctx context.Context, notificationID, recipientID uuid.UUID, at time.Time) error
	Get(ctx context.Context, notificationID, recipientID uuid.UUID) (*entity.DeliveryRecord, error)
	// ListForNotificationPaginated retrieves per-recipient delivery state for
	// the staff tracking view, ordered by recipient id for stable pages.
	ListForNotificationPaginated(ctx context.Context, notificationID uuid.UUID, offset, limit int) ([]*entity.DeliveryRecord, error)
	CountForNotification(ctx context.Context, notificationID uuid.UUID) (int64, error)
	// Summary aggregates the ledger for one notification in a single query.
	Summary(ctx context.Context, notificationID uuid.UUID) (*entity.DeliverySummary, error)
	// FindRetryable returns records whose channel status is failed, whose
	// persisted attempt count is below maxAttempts and whose notification
	// still intends the channel (it was reached on a previous pass or no
	// pass ever completed). Ordered by updated_at ASC so stale failures are
	// retried first.
	FindRetryable(ctx context.Context, ch entity.Channel, maxAttempts, limit int) ([]*entity.DeliveryRecord, error)
}
