package repository

import (
	"context"

	"github.com/google/uuid"

	"school-notify/internal/domain/entity"
)

type TenantRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Tenant, error)
}
