// Package target provides the single recipient-resolution path for the
// notification engine. Every call site that needs "who receives this
// notification" goes through the Resolver, so the direct-membership and
// guardian-via-dependent rules cannot drift between dispatch, retry and the
// inbox visibility queries.
package target

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"school-notify/internal/domain/entity"
	"school-notify/internal/repository"
)

// Resolver resolves a notification's targeting declaration into the final,
// deduplicated recipient set within the owning tenant.
type Resolver struct {
	NotificationRepo repository.NotificationRepository
	RecipientRepo    repository.RecipientRepository
}

// Resolve returns the recipients the notification should reach, restricted
// to the notification's tenant.
//
// Explicit mode filters the stored id list down to verifiable tenant members
// (directly assigned, or linked through a guardian-dependent relationship
// into the tenant); unverifiable ids are dropped silently so a mixed list
// still reaches its valid recipients. Auto mode is the union of guardians
// homed in the tenant and guardians linked only through an enrolled
// dependent.
//
// Resolution is idempotent: the same notification and membership snapshot
// always yield the same set.
func (r *Resolver) Resolve(ctx context.Context, n *entity.Notification) ([]*entity.Recipient, error) {
	switch n.TargetMode {
	case entity.TargetExplicit:
		return r.resolveExplicit(ctx, n)
	case entity.TargetAuto:
		recipients, err := r.RecipientRepo.GuardiansForTenant(ctx, n.TenantID)
		if err != nil {
			return nil, fmt.Errorf("resolve auto targets: %w", err)
		}
		return dedupe(recipients), nil
	default:
		return nil, &entity.ValidationError{Field: "targetMode", Message: "must be auto or explicit"}
	}
}

// ResolveCrossTenant resolves an explicit id list without the tenant
// membership filter. Authorization is the caller's responsibility: only
// administrator-scoped code paths may use this, and auto mode never crosses
// tenants.
func (r *Resolver) ResolveCrossTenant(ctx context.Context, n *entity.Notification) ([]*entity.Recipient, error) {
	if n.TargetMode != entity.TargetExplicit {
		return nil, &entity.ValidationError{Field: "targetMode", Message: "cross-tenant resolution requires explicit targeting"}
	}

	ids, err := r.NotificationRepo.TargetIDs(ctx, n.ID)
	if err != nil {
		return nil, fmt.Errorf("load target ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	recipients, err := r.RecipientRepo.GetByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	return dedupe(recipients), nil
}

func (r *Resolver) resolveExplicit(ctx context.Context, n *entity.Notification) ([]*entity.Recipient, error) {
	ids, err := r.NotificationRepo.TargetIDs(ctx, n.ID)
	if err != nil {
		return nil, fmt.Errorf("load target ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	members, err := r.RecipientRepo.FilterTenantMembers(ctx, n.TenantID, uniqueIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("filter tenant members: %w", err)
	}

	// Ids outside the tenant are dropped, not rejected; callers needing
	// strict validation pre-validate before creating the notification.
	if dropped := len(uniqueIDs(ids)) - len(members); dropped > 0 {
		slog.Debug("dropped non-member target ids",
			slog.String("notification_id", n.ID.String()),
			slog.String("tenant_id", n.TenantID.String()),
			slog.Int("dropped", dropped))
	}
	if len(members) == 0 {
		return nil, nil
	}

	recipients, err := r.RecipientRepo.GetByIDs(ctx, members)
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	return dedupe(recipients), nil
}

// uniqueIDs removes duplicate ids while keeping the first occurrence order.
func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// dedupe removes recipients listed twice, which can happen when a guardian
// is both directly assigned and linked through a dependent.
func dedupe(recipients []*entity.Recipient) []*entity.Recipient {
	seen := make(map[uuid.UUID]struct{}, len(recipients))
	out := make([]*entity.Recipient, 0, len(recipients))
	for _, rec := range recipients {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out
}
