package repository

import (
	"context"

	"github.com/google/uuid"

	"school-notify/internal/domain/entity"
)

type RecipientRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Recipient, error)
	// GetByIDs loads recipients in one round trip. Unknown ids are silently
	// absent from the result; ordering follows the database, not the input.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Recipient, error)
	// FilterTenantMembers returns the subset of ids belonging to the tenant,
	// either directly or as a guardian of one of its dependents. Ids outside
	// the tenant are dropped without error.
	FilterTenantMembers(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	// GuardiansForTenant resolves the tenant's full guardian audience: the
	// union of guardians homed in the tenant and guardians linked to one of
	// its dependents, each listed once.
	GuardiansForTenant(ctx context.Context, tenantID uuid.UUID) ([]*entity.Recipient, error)
	// IsTenantMember reports tenant membership by either path, mirroring
	// FilterTenantMembers for a single id.
	IsTenantMember(ctx context.Context, tenantID, recipientID uuid.UUID) (bool, error)
}
