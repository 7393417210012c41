package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"school-notify/internal/domain/entity"
	"school-notify/internal/repository"
)

type RecipientRepo struct{ db *sql.DB }

func NewRecipientRepo(db *sql.DB) repository.RecipientRepository {
	return &RecipientRepo{db: db}
}

const recipientColumns = `id, tenant_id, role, display_name, push_token, email, phone,
       push_opt_in, email_opt_in, sms_opt_in, created_at`

// tenantMember matches recipients belonging to tenant $1 directly or through
// a guardian link to one of its dependents. The alias r must be bound by the
// enclosing query.
const tenantMember = `
(r.tenant_id = $1
 OR EXISTS (
     SELECT 1
     FROM guardian_links gl
     INNER JOIN dependents d ON gl.dependent_id = d.id
     WHERE gl.guardian_id = r.id AND d.tenant_id = $1))`

// scanRecipient is a helper to scan a recipient row, folding NULLable
// address columns into empty strings.
func scanRecipient(scan func(dest ...any) error) (*entity.Recipient, error) {
	var r entity.Recipient
	var tenantID uuid.NullUUID
	var pushToken, email, phone sql.NullString
	if err := scan(
		&r.ID, &tenantID, &r.Role, &r.Name, &pushToken, &email, &phone,
		&r.PushOptIn, &r.EmailOptIn, &r.SMSOptIn, &r.CreatedAt,
	); err != nil {
		return nil, err
	}

	if tenantID.Valid {
		id := tenantID.UUID
		r.TenantID = &id
	}
	r.PushToken, r.Email, r.Phone = pushToken.String, email.String, phone.String

	return &r, nil
}

func (repo *RecipientRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Recipient, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM recipients
WHERE id = $1
LIMIT 1`, recipientColumns)

	r, err := scanRecipient(repo.db.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return r, nil
}

func (repo *RecipientRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Recipient, error) {
	if len(ids) == 0 {
		return []*entity.Recipient{}, nil
	}

	query := fmt.Sprintf(`
SELECT %s
FROM recipients
WHERE id = ANY($1::uuid[])
ORDER BY id`, recipientColumns)

	rows, err := repo.db.QueryContext(ctx, query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("GetByIDs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	recipients := make([]*entity.Recipient, 0, len(ids))
	for rows.Next() {
		r, err := scanRecipient(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("GetByIDs: Scan: %w", err)
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}

func (repo *RecipientRepo) FilterTenantMembers(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return []uuid.UUID{}, nil
	}

	// Ids outside the tenant simply drop out of the result set.
	query := fmt.Sprintf(`
SELECT r.id
FROM recipients r
WHERE r.id = ANY($2::uuid[])
  AND %s
ORDER BY r.id`, tenantMember)

	rows, err := repo.db.QueryContext(ctx, query, tenantID, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("FilterTenantMembers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	members := make([]uuid.UUID, 0, len(ids))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("FilterTenantMembers: Scan: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

func (repo *RecipientRepo) GuardiansForTenant(ctx context.Context, tenantID uuid.UUID) ([]*entity.Recipient, error) {
	// UNION collapses guardians reachable by both paths into one row, so a
	// guardian homed in the tenant with an enrolled dependent is still
	// targeted exactly once.
	query := fmt.Sprintf(`
SELECT %[1]s
FROM recipients
WHERE role = 'guardian' AND tenant_id = $1
UNION
SELECT r.id, r.tenant_id, r.role, r.display_name, r.push_token, r.email, r.phone,
       r.push_opt_in, r.email_opt_in, r.sms_opt_in, r.created_at
FROM recipients r
INNER JOIN guardian_links gl ON gl.guardian_id = r.id
INNER JOIN dependents d      ON d.id = gl.dependent_id
WHERE r.role = 'guardian' AND d.tenant_id = $1
ORDER BY id`, recipientColumns)

	rows, err := repo.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("GuardiansForTenant: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// パフォーマンス最適化: メモリ再割り当てを削減するため事前割り当て
	guardians := make([]*entity.Recipient, 0, 100)
	for rows.Next() {
		r, err := scanRecipient(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("GuardiansForTenant: Scan: %w", err)
		}
		guardians = append(guardians, r)
	}
	return guardians, rows.Err()
}

func (repo *RecipientRepo) IsTenantMember(ctx context.Context, tenantID, recipientID uuid.UUID) (bool, error) {
	query := fmt.Sprintf(`
SELECT EXISTS (
    SELECT 1
    FROM recipients r
    WHERE r.id = $2
      AND %s)`, tenantMember)

	var member bool
	err := repo.db.QueryRowContext(ctx, query, tenantID, recipientID).Scan(&member)
	if err != nil {
		return false, fmt.Errorf("IsTenantMember: %w", err)
	}
	return member, nil
}
