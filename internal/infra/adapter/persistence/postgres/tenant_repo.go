package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"school-notify/internal/domain/entity"
	"school-notify/internal/repository"
)

type TenantRepo struct{ db *sql.DB }

func NewTenantRepo(db *sql.DB) repository.TenantRepository {
	return &TenantRepo{db: db}
}

func (repo *TenantRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Tenant, error) {
	const query = `
SELECT id, name, created_at
FROM tenants
WHERE id = $1
LIMIT 1`
	var tenant entity.Tenant
	err := repo.db.QueryRowContext(ctx, query, id).
		Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &tenant, nil
}
