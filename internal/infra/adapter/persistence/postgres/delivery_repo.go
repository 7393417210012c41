package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"school-notify/internal/domain/entity"
	"school-notify/internal/repository"
)

type DeliveryRepo struct{ db *sql.DB }

func NewDeliveryRepo(db *sql.DB) repository.DeliveryRepository {
	return &DeliveryRepo{db: db}
}

// deliveryColumns is the full column list shared by every read path. The
// per-channel triples must stay in push, email, sms order to match
// scanDeliveryRecord.
const deliveryColumns = `id, notification_id, recipient_id,
       push_status, push_error, push_message_id, push_attempts,
       email_status, email_error, email_message_id, email_attempts,
       sms_status, sms_error, sms_message_id, sms_attempts,
       delivered_at, read_at, created_at, updated_at`

// scanDeliveryRecord is a helper to scan a full delivery record row,
// folding the NULLable error and message id columns into empty strings.
func scanDeliveryRecord(scan func(dest ...any) error) (*entity.DeliveryRecord, error) {
	var r entity.DeliveryRecord
	var pushErr, pushMsgID sql.NullString
	var emailErr, emailMsgID sql.NullString
	var smsErr, smsMsgID sql.NullString
	if err := scan(
		&r.ID, &r.NotificationID, &r.RecipientID,
		&r.Push.Status, &pushErr, &pushMsgID, &r.Push.Attempts,
		&r.Email.Status, &emailErr, &emailMsgID, &r.Email.Attempts,
		&r.SMS.Status, &smsErr, &smsMsgID, &r.SMS.Attempts,
		&r.DeliveredAt, &r.ReadAt, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}

	r.Push.Error, r.Push.ProviderMessageID = pushErr.String, pushMsgID.String
	r.Email.Error, r.Email.ProviderMessageID = emailErr.String, emailMsgID.String
	r.SMS.Error, r.SMS.ProviderMessageID = smsErr.String, smsMsgID.String

	return &r, nil
}

func (repo *DeliveryRepo) GetOrCreate(ctx context.Context, notificationID, recipientID uuid.UUID) (*entity.DeliveryRecord, error) {
	// The DO UPDATE arm changes nothing but updated_at; it only exists so
	// the statement returns the surviving row to both racing workers.
	query := fmt.Sprintf(`
INSERT INTO delivery_records (notification_id, recipient_id)
VALUES ($1, $2)
ON CONFLICT (notification_id, recipient_id)
DO UPDATE SET updated_at = now()
RETURNING %s`, deliveryColumns)

	r, err := scanDeliveryRecord(repo.db.QueryRowContext(ctx, query, notificationID, recipientID).Scan)
	if err != nil {
		return nil, fmt.Errorf("GetOrCreate: %w", err)
	}
	return r, nil
}

func (repo *DeliveryRepo) RecordAttempt(ctx context.Context, recordID int64, ch entity.Channel, outcome entity.ChannelOutcome) error {
	// The channel name is interpolated into identifiers, so it must come
	// from the known set, never from caller input.
	if !ch.Valid() {
		return fmt.Errorf("RecordAttempt: unknown channel %q", ch)
	}

	query := fmt.Sprintf(`
UPDATE delivery_records SET
       %[1]s_status     = $1,
       %[1]s_error      = NULLIF($2, ''),
       %[1]s_message_id = NULLIF($3, ''),
       %[1]s_attempts   = %[1]s_attempts + 1,
       delivered_at     = CASE WHEN $4 THEN COALESCE(delivered_at, now()) ELSE delivered_at END,
       updated_at       = now()
WHERE id = $5`, ch)

	res, err := repo.db.ExecContext(ctx, query,
		outcome.State(), outcome.Error, outcome.ProviderMessageID,
		outcome.Delivered, recordID,
	)
	if err != nil {
		return fmt.Errorf("RecordAttempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("RecordAttempt: no rows affected")
	}
	return nil
}

func (repo *DeliveryRepo) MarkRead(ctx context.Context, notificationID, recipientID uuid.UUID, at time.Time) error {
	// Read state is independent of delivery: a record is created here when
	// dispatch never produced one. COALESCE keeps the first read_at, so a
	// second call is a no-op.
	const query = `
INSERT INTO delivery_records (notification_id, recipient_id, read_at)
VALUES ($1, $2, $3)
ON CONFLICT (notification_id, recipient_id)
DO UPDATE SET read_at    = COALESCE(delivery_records.read_at, EXCLUDED.read_at),
              updated_at = now()`
	if _, err := repo.db.ExecContext(ctx, query, notificationID, recipientID, at); err != nil {
		return fmt.Errorf("MarkRead: %w", err)
	}
	return nil
}

func (repo *DeliveryRepo) Get(ctx context.Context, notificationID, recipientID uuid.UUID) (*entity.DeliveryRecord, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM delivery_records
WHERE notification_id = $1 AND recipient_id = $2
LIMIT 1`, deliveryColumns)

	r, err := scanDeliveryRecord(repo.db.QueryRowContext(ctx, query, notificationID, recipientID).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return r, nil
}

func (repo *DeliveryRepo) ListForNotificationPaginated(ctx context.Context, notificationID uuid.UUID, offset, limit int) ([]*entity.DeliveryRecord, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM delivery_records
WHERE notification_id = $1
ORDER BY recipient_id ASC
LIMIT $2 OFFSET $3`, deliveryColumns)

	rows, err := repo.db.QueryContext(ctx, query, notificationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListForNotificationPaginated: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*entity.DeliveryRecord, 0, limit)
	for rows.Next() {
		r, err := scanDeliveryRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("ListForNotificationPaginated: Scan: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (repo *DeliveryRepo) CountForNotification(ctx context.Context, notificationID uuid.UUID) (int64, error) {
	const query = `SELECT COUNT(*) FROM delivery_records WHERE notification_id = $1`
	var count int64
	err := repo.db.QueryRowContext(ctx, query, notificationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("CountForNotification: %w", err)
	}
	return count, nil
}

func (repo *DeliveryRepo) Summary(ctx context.Context, notificationID uuid.UUID) (*entity.DeliverySummary, error) {
	const query = `
SELECT COUNT(*)                                               AS target_count,
       COUNT(*) FILTER (WHERE push_status  = 'delivered')     AS push_delivered,
       COUNT(*) FILTER (WHERE email_status = 'delivered')     AS email_delivered,
       COUNT(*) FILTER (WHERE sms_status   = 'delivered')     AS sms_delivered,
       COUNT(*) FILTER (WHERE push_status  = 'failed'
                     OR email_status = 'failed'
                     OR sms_status   = 'failed')              AS failed_any,
       COUNT(read_at)                                         AS read_count
FROM delivery_records
WHERE notification_id = $1`

	var s entity.DeliverySummary
	err := repo.db.QueryRowContext(ctx, query, notificationID).Scan(
		&s.TargetCount, &s.PushDelivered, &s.EmailDelivered,
		&s.SMSDelivered, &s.FailedAny, &s.ReadCount,
	)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}
	return &s, nil
}

func (repo *DeliveryRepo) FindRetryable(ctx context.Context, ch entity.Channel, maxAttempts, limit int) ([]*entity.DeliveryRecord, error) {
	if !ch.Valid() {
		return nil, fmt.Errorf("FindRetryable: unknown channel %q", ch)
	}

	// The join enforces the intent gate: retry only channels the
	// notification reached on a previous pass, or any channel while no
	// pass has completed yet. not_attempted rows never match.
	query := fmt.Sprintf(`
SELECT dr.id, dr.notification_id, dr.recipient_id,
       dr.push_status, dr.push_error, dr.push_message_id, dr.push_attempts,
       dr.email_status, dr.email_error, dr.email_message_id, dr.email_attempts,
       dr.sms_status, dr.sms_error, dr.sms_message_id, dr.sms_attempts,
       dr.delivered_at, dr.read_at, dr.created_at, dr.updated_at
FROM delivery_records dr
INNER JOIN notifications n ON n.id = dr.notification_id
WHERE dr.%[1]s_status = 'failed'
  AND dr.%[1]s_attempts < $1
  AND (n.sent_via_%[1]s = TRUE OR n.sent_at IS NULL)
ORDER BY dr.updated_at ASC
LIMIT $2`, ch)

	rows, err := repo.db.QueryContext(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("FindRetryable: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*entity.DeliveryRecord, 0, limit)
	for rows.Next() {
		r, err := scanDeliveryRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("FindRetryable: Scan: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
