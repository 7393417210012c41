package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"school-notify/internal/domain/entity"
)

// NotificationWithReadState pairs a notification with the requesting
// recipient's read timestamp, nil when unread.
type NotificationWithReadState struct {
	Notification *entity.Notification
	ReadAt       *time.Time
}

type NotificationRepository interface {
	// Create persists the notification and, for explicit targeting, its
	// stored recipient id list in a single transaction.
	Create(ctx context.Context, n *entity.Notification, targetIDs []uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Notification, error)
	// TargetIDs returns the stored recipient id list of an explicit
	// notification, empty for auto targeting.
	TargetIDs(ctx context.Context, notificationID uuid.UUID) ([]uuid.UUID, error)
	// MarkSent records the completion of a dispatch pass that reached at
	// least one recipient. sent_at is written only if still unset; the
	// per-channel flags are ORed in and never cleared.
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, via []entity.Channel) error
	// ListForRecipientPaginated retrieves the recipient's inbox within one
	// tenant, ordered by created_at DESC, newest first. Explicitly targeted
	// notifications stay visible even when the recipient is no longer a
	// tenant member; auto-targeted ones require current membership.
	// Parameters:
	//   - offset: Number of rows to skip (calculated from page number)
	//   - limit: Maximum number of rows to return
	ListForRecipientPaginated(ctx context.Context, recipientID, tenantID uuid.UUID, offset, limit int) ([]NotificationWithReadState, error)
	// CountForRecipient returns the total number of notifications visible to
	// the recipient within the tenant, used for pagination metadata.
	CountForRecipient(ctx context.Context, recipientID, tenantID uuid.UUID) (int64, error)
	// UnreadCount returns how many visible notifications carry no read mark
	// for the recipient within the tenant.
	UnreadCount(ctx context.Context, recipientID, tenantID uuid.UUID) (int64, error)
	// ListUnsent returns notifications that never completed a dispatch pass
	// (sent_at IS NULL), oldest first, for the sweep job.
	ListUnsent(ctx context.Context, limit int) ([]*entity.Notification, error)
	// ListByTenantPaginated retrieves a tenant's notifications for the staff
	// view, newest first.
	ListByTenantPaginated(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*entity.Notification, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	// Delete removes the notification together with its targets and delivery
	// records.
	Delete(ctx context.Context, id uuid.UUID) error
}
