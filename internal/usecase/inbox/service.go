package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"school-notify/internal/common/pagination"
	"school-notify/internal/domain/entity"
	"school-notify/internal/observability/metrics"
	"school-notify/internal/repository"
)

// Service provides read-side use cases over notifications and delivery state.
// It handles the visibility rules and delegates persistence to the
// repositories.
type Service struct {
	NotificationRepo repository.NotificationRepository
	DeliveryRepo     repository.DeliveryRepository
	RecipientRepo    repository.RecipientRepository

	// PaginationConfig bounds page sizes; the zero value falls back to the
	// package defaults.
	PaginationConfig pagination.Config
}

// InboxPage is one page of a recipient's inbox.
type InboxPage struct {
	Data       []repository.NotificationWithReadState
	Pagination pagination.Metadata
}

// DeliveryPage is one page of per-recipient delivery state for a notification.
type DeliveryPage struct {
	Data       []*entity.DeliveryRecord
	Pagination pagination.Metadata
}

// TenantPage is one page of a tenant's notifications, for the staff view.
type TenantPage struct {
	Data       []*entity.Notification
	Pagination pagination.Metadata
}

func (s *Service) config() pagination.Config {
	if s.PaginationConfig == (pagination.Config{}) {
		return pagination.DefaultConfig()
	}
	return s.PaginationConfig
}

// List retrieves the recipient's inbox within one tenant, newest first, with
// the per-notification read state. Explicitly targeted notifications stay
// visible even after the recipient leaves the tenant; auto-targeted ones
// require current membership.
func (s *Service) List(ctx context.Context, recipientID, tenantID uuid.UUID, params pagination.Params) (*InboxPage, error) {
	cfg := s.config()
	params = params.WithDefaults(cfg)
	if err := params.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate pagination: %w", err)
	}

	offset := pagination.CalculateOffset(params.Page, params.Limit)

	total, err := s.NotificationRepo.CountForRecipient(ctx, recipientID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count inbox: %w", err)
	}

	rows, err := s.NotificationRepo.ListForRecipientPaginated(ctx, recipientID, tenantID, offset, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}

	return &InboxPage{
		Data: rows,
		Pagination: pagination.Metadata{
			Total:      total,
			Page:       params.Page,
			Limit:      params.Limit,
			TotalPages: pagination.CalculateTotalPages(total, params.Limit),
		},
	}, nil
}

// UnreadCount returns how many visible notifications the recipient has not
// read within the tenant, for the badge counter.
func (s *Service) UnreadCount(ctx context.Context, recipientID, tenantID uuid.UUID) (int64, error) {
	count, err := s.NotificationRepo.UnreadCount(ctx, recipientID, tenantID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// MarkRead records that the recipient has read the notification. The first
// read timestamp wins; marking again is a no-op. Read state is independent
// of delivery success, so a notification that reached the recipient through
// no channel at all can still be marked read from the in-app inbox.
//
// Returns ErrNotificationNotFound when the notification does not exist or is
// not visible to the recipient.
func (s *Service) MarkRead(ctx context.Context, notificationID, recipientID uuid.UUID) error {
	n, err := s.NotificationRepo.Get(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("get notification: %w", err)
	}
	if n == nil {
		return ErrNotificationNotFound
	}

	visible, err := s.visibleTo(ctx, n, recipientID)
	if err != nil {
		return err
	}
	if !visible {
		return ErrNotificationNotFound
	}

	if err := s.DeliveryRepo.MarkRead(ctx, notificationID, recipientID, time.Now()); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	metrics.RecordReadMark()
	return nil
}

// visibleTo applies the inbox visibility rule: explicit targeting pins the
// audience at creation time, auto targeting follows current membership.
func (s *Service) visibleTo(ctx context.Context, n *entity.Notification, recipientID uuid.UUID) (bool, error) {
	switch n.TargetMode {
	case entity.TargetExplicit:
		ids, err := s.NotificationRepo.TargetIDs(ctx, n.ID)
		if err != nil {
			return false, fmt.Errorf("load targets: %w", err)
		}
		for _, id := range ids {
			if id == recipientID {
				return true, nil
			}
		}
		return false, nil
	case entity.TargetAuto:
		member, err := s.RecipientRepo.IsTenantMember(ctx, n.TenantID, recipientID)
		if err != nil {
			return false, fmt.Errorf("check membership: %w", err)
		}
		return member, nil
	}
	return false, nil
}

// DeliverySummary aggregates the delivery ledger for one notification:
// target count, per-channel delivered counts, failures and reads.
func (s *Service) DeliverySummary(ctx context.Context, notificationID uuid.UUID) (*entity.DeliverySummary, error) {
	n, err := s.NotificationRepo.Get(ctx, notificationID)
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	if n == nil {
		return nil, ErrNotificationNotFound
	}

	summary, err := s.DeliveryRepo.Summary(ctx, notificationID)
	if err != nil {
		return nil, fmt.Errorf("summarize deliveries: %w", err)
	}
	return summary, nil
}

// ListDeliveries retrieves per-recipient delivery state for one notification,
// for the staff drill-down view.
func (s *Service) ListDeliveries(ctx context.Context, notificationID uuid.UUID, params pagination.Params) (*DeliveryPage, error) {
	n, err := s.NotificationRepo.Get(ctx, notificationID)
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	if n == nil {
		return nil, ErrNotificationNotFound
	}

	cfg := s.config()
	params = params.WithDefaults(cfg)
	if err := params.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate pagination: %w", err)
	}

	offset := pagination.CalculateOffset(params.Page, params.Limit)

	total, err := s.DeliveryRepo.CountForNotification(ctx, notificationID)
	if err != nil {
		return nil, fmt.Errorf("count deliveries: %w", err)
	}

	records, err := s.DeliveryRepo.ListForNotificationPaginated(ctx, notificationID, offset, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}

	return &DeliveryPage{
		Data: records,
		Pagination: pagination.Metadata{
			Total:      total,
			Page:       params.Page,
			Limit:      params.Limit,
			TotalPages: pagination.CalculateTotalPages(total, params.Limit),
		},
	}, nil
}

// ListByTenant retrieves a tenant's notifications, newest first, for the
// staff overview.
func (s *Service) ListByTenant(ctx context.Context, tenantID uuid.UUID, params pagination.Params) (*TenantPage, error) {
	cfg := s.config()
	params = params.WithDefaults(cfg)
	if err := params.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate pagination: %w", err)
	}

	offset := pagination.CalculateOffset(params.Page, params.Limit)

	total, err := s.NotificationRepo.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count tenant notifications: %w", err)
	}

	notifications, err := s.NotificationRepo.ListByTenantPaginated(ctx, tenantID, offset, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("list tenant notifications: %w", err)
	}

	return &TenantPage{
		Data: notifications,
		Pagination: pagination.Metadata{
			Total:      total,
			Page:       params.Page,
			Limit:      params.Limit,
			TotalPages: pagination.CalculateTotalPages(total, params.Limit),
		},
	}, nil
}

// Delete removes a notification together with its stored targets and
// delivery records.
//
// Returns ErrNotificationNotFound if the notification does not exist.
func (s *Service) Delete(ctx context.Context, notificationID uuid.UUID) error {
	n, err := s.NotificationRepo.Get(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("get notification: %w", err)
	}
	if n == nil {
		return ErrNotificationNotFound
	}

	if err := s.NotificationRepo.Delete(ctx, notificationID); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}
