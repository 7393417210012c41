package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"school-notify/internal/domain/entity"
	"school-notify/internal/repository"
)

type NotificationRepo struct{ db *sql.DB }

func NewNotificationRepo(db *sql.DB) repository.NotificationRepository {
	return &NotificationRepo{db: db}
}

// uuidStrings converts ids for array parameters. lib/pq arrays of plain
// strings round-trip reliably through the pgx stdlib driver; the query side
// casts with ::uuid[].
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// visibleToRecipient is the inbox visibility predicate, shared by the list,
// count and unread queries. $1 is the recipient id, $2 the tenant id.
// Explicitly targeted rows stay visible without membership; auto rows require
// membership by either path (direct tenant or guardian of a dependent).
const visibleToRecipient = `
n.tenant_id = $2
  AND (EXISTS (
           SELECT 1 FROM notification_targets t
           WHERE t.notification_id = n.id AND t.recipient_id = $1)
       OR (n.target_mode = 'auto' AND EXISTS (
           SELECT 1 FROM recipients r
           WHERE r.id = $1
             AND (r.tenant_id = n.tenant_id
                  OR EXISTS (
                      SELECT 1
                      FROM guardian_links gl
                      INNER JOIN dependents d ON gl.dependent_id = d.id
                      WHERE gl.guardian_id = r.id AND d.tenant_id = n.tenant_id)))))`

// scanNotification is a helper to scan a notification row including the
// jsonb payload column.
func scanNotification(scan func(dest ...any) error) (*entity.Notification, error) {
	var n entity.Notification
	var payloadJSON []byte
	if err := scan(
		&n.ID, &n.TenantID, &n.Title, &n.Body, &n.Category, &n.TargetMode,
		&payloadJSON, &n.SentViaPush, &n.SentViaEmail, &n.SentViaSMS,
		&n.CreatedAt, &n.SentAt,
	); err != nil {
		return nil, err
	}

	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &n.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}

	return &n, nil
}

func (repo *NotificationRepo) Create(ctx context.Context, n *entity.Notification, targetIDs []uuid.UUID) error {
	var payloadJSON []byte
	if n.Payload != nil {
		var err error
		payloadJSON, err = json.Marshal(n.Payload)
		if err != nil {
			return fmt.Errorf("Create: marshal payload: %w", err)
		}
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Create: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertNotification = `
INSERT INTO notifications
       (id, tenant_id, title, body, category, target_mode, payload,
        sent_via_push, sent_via_email, sent_via_sms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := tx.ExecContext(ctx, insertNotification,
		n.ID, n.TenantID, n.Title, n.Body, n.Category, n.TargetMode,
		payloadJSON, n.SentViaPush, n.SentViaEmail, n.SentViaSMS, n.CreatedAt,
	); err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	if len(targetIDs) > 0 {
		const insertTargets = `
INSERT INTO notification_targets (notification_id, recipient_id)
SELECT $1, unnest($2::uuid[])
ON CONFLICT DO NOTHING`
		if _, err := tx.ExecContext(ctx, insertTargets,
			n.ID, pq.Array(uuidStrings(targetIDs)),
		); err != nil {
			return fmt.Errorf("Create: targets: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Create: commit: %w", err)
	}
	return nil
}

func (repo *NotificationRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Notification, error) {
	const query = `
SELECT id, tenant_id, title, body, category, target_mode, payload,
       sent_via_push, sent_via_email, sent_via_sms, created_at, sent_at
FROM notifications
WHERE id = $1
LIMIT 1`
	n, err := scanNotification(repo.db.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return n, nil
}

func (repo *NotificationRepo) TargetIDs(ctx context.Context, notificationID uuid.UUID) ([]uuid.UUID, error) {
	const query = `
SELECT recipient_id
FROM notification_targets
WHERE notification_id = $1
ORDER BY recipient_id`
	rows, err := repo.db.QueryContext(ctx, query, notificationID)
	if err != nil {
		return nil, fmt.Errorf("TargetIDs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]uuid.UUID, 0, 50)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("TargetIDs: Scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (repo *NotificationRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, via []entity.Channel) error {
	var push, email, sms bool
	for _, ch := range via {
		switch ch {
		case entity.ChannelPush:
			push = true
		case entity.ChannelEmail:
			email = true
		case entity.ChannelSMS:
			sms = true
		}
	}

	// sent_at only moves from NULL and the flags only move to TRUE, so a
	// resend can widen but never rewind the summary.
	const query = `
UPDATE notifications SET
       sent_at        = COALESCE(sent_at, $1),
       sent_via_push  = sent_via_push  OR $2,
       sent_via_email = sent_via_email OR $3,
       sent_via_sms   = sent_via_sms   OR $4
WHERE id = $5`
	res, err := repo.db.ExecContext(ctx, query, sentAt, push, email, sms, id)
	if err != nil {
		return fmt.Errorf("MarkSent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("MarkSent: no rows affected")
	}
	return nil
}

func (repo *NotificationRepo) ListForRecipientPaginated(ctx context.Context, recipientID, tenantID uuid.UUID, offset, limit int) ([]repository.NotificationWithReadState, error) {
	query := fmt.Sprintf(`
SELECT n.id, n.tenant_id, n.title, n.body, n.category, n.target_mode, n.payload,
       n.sent_via_push, n.sent_via_email, n.sent_via_sms, n.created_at, n.sent_at,
       dr.read_at
FROM notifications n
LEFT JOIN delivery_records dr
       ON dr.notification_id = n.id AND dr.recipient_id = $1
WHERE %s
ORDER BY n.created_at DESC
LIMIT $3 OFFSET $4`, visibleToRecipient)

	rows, err := repo.db.QueryContext(ctx, query, recipientID, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListForRecipientPaginated: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]repository.NotificationWithReadState, 0, limit)
	for rows.Next() {
		var n entity.Notification
		var payloadJSON []byte
		var readAt *time.Time
		if err := rows.Scan(
			&n.ID, &n.TenantID, &n.Title, &n.Body, &n.Category, &n.TargetMode,
			&payloadJSON, &n.SentViaPush, &n.SentViaEmail, &n.SentViaSMS,
			&n.CreatedAt, &n.SentAt, &readAt,
		); err != nil {
			return nil, fmt.Errorf("ListForRecipientPaginated: Scan: %w", err)
		}
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &n.Payload); err != nil {
				return nil, fmt.Errorf("ListForRecipientPaginated: unmarshal payload: %w", err)
			}
		}
		result = append(result, repository.NotificationWithReadState{
			Notification: &n,
			ReadAt:       readAt,
		})
	}
	return result, rows.Err()
}

func (repo *NotificationRepo) CountForRecipient(ctx context.Context, recipientID, tenantID uuid.UUID) (int64, error) {
	query := fmt.Sprintf(`
SELECT COUNT(*)
FROM notifications n
WHERE %s`, visibleToRecipient)

	var count int64
	err := repo.db.QueryRowContext(ctx, query, recipientID, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("CountForRecipient: %w", err)
	}
	return count, nil
}

func (repo *NotificationRepo) UnreadCount(ctx context.Context, recipientID, tenantID uuid.UUID) (int64, error) {
	// A missing delivery record counts as unread: the LEFT JOIN leaves
	// read_at NULL for rows dispatch never touched.
	query := fmt.Sprintf(`
SELECT COUNT(*)
FROM notifications n
LEFT JOIN delivery_records dr
       ON dr.notification_id = n.id AND dr.recipient_id = $1
WHERE %s
  AND dr.read_at IS NULL`, visibleToRecipient)

	var count int64
	err := repo.db.QueryRowContext(ctx, query, recipientID, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("UnreadCount: %w", err)
	}
	return count, nil
}

func (repo *NotificationRepo) ListUnsent(ctx context.Context, limit int) ([]*entity.Notification, error) {
	const query = `
SELECT id, tenant_id, title, body, category, target_mode, payload,
       sent_via_push, sent_via_email, sent_via_sms, created_at, sent_at
FROM notifications
WHERE sent_at IS NULL
ORDER BY created_at ASC
LIMIT $1`
	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListUnsent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	notifications := make([]*entity.Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("ListUnsent: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (repo *NotificationRepo) ListByTenantPaginated(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*entity.Notification, error) {
	const query = `
SELECT id, tenant_id, title, body, category, target_mode, payload,
       sent_via_push, sent_via_email, sent_via_sms, created_at, sent_at
FROM notifications
WHERE tenant_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := repo.db.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListByTenantPaginated: %w", err)
	}
	defer func() { _ = rows.Close() }()

	notifications := make([]*entity.Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("ListByTenantPaginated: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (repo *NotificationRepo) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE tenant_id = $1`
	var count int64
	err := repo.db.QueryRowContext(ctx, query, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("CountByTenant: %w", err)
	}
	return count, nil
}

func (repo *NotificationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	// Targets and delivery records go with it via ON DELETE CASCADE.
	const query = `DELETE FROM notifications WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Delete: no rows affected")
	}
	return nil
}
