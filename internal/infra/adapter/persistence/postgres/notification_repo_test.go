package postgres_test

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"school-notify/internal/domain/entity"
	pg "school-notify/internal/infra/adapter/persistence/postgres"
)

/* ─────────────────────────── ヘルパ ─────────────────────────── */

var notifCols = []string{
	"id", "tenant_id", "title", "body", "category", "target_mode", "payload",
	"sent_via_push", "sent_via_email", "sent_via_sms", "created_at", "sent_at",
}

// timeVal flattens an optional timestamp for sqlmock rows.
func timeVal(t *time.Time) driver.Value {
	if t == nil {
		return nil
	}
	return *t
}

func notifRow(n *entity.Notification, payload []byte) *sqlmock.Rows {
	return sqlmock.NewRows(notifCols).AddRow(
		n.ID.String(), n.TenantID.String(), n.Title, n.Body,
		string(n.Category), string(n.TargetMode), payload,
		n.SentViaPush, n.SentViaEmail, n.SentViaSMS,
		n.CreatedAt, timeVal(n.SentAt),
	)
}

/* ─────────────────────────── 1. Get ─────────────────────────── */

func TestNotificationRepo_Get(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	want := &entity.Notification{
		ID: uuid.New(), TenantID: uuid.New(),
		Title: "Field trip reminder", Body: "Please return the consent form.",
		Category: entity.CategoryGeneral, TargetMode: entity.TargetAuto,
		CreatedAt: now,
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id")).
		WithArgs(want.ID).
		WillReturnRows(notifRow(want, nil))

	repo := pg.NewNotificationRepo(db)
	got, err := repo.Get(context.Background(), want.ID)
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestNotificationRepo_Get_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(notifCols)) // 空集合

	repo := pg.NewNotificationRepo(db)
	got, err := repo.Get(context.Background(), id)
	if err != nil || got != nil {
		t.Fatalf("Get err=%v got=%v, want nil, nil", err, got)
	}
}

func TestNotificationRepo_Get_Payload(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	want := &entity.Notification{
		ID: uuid.New(), TenantID: uuid.New(),
		Title: "Invoice issued", Body: "See attached invoice.",
		Category: entity.CategoryPayment, TargetMode: entity.TargetExplicit,
		Payload:   map[string]any{"invoice_id": "inv_2203"},
		CreatedAt: now,
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id")).
		WithArgs(want.ID).
		WillReturnRows(notifRow(want, []byte(`{"invoice_id":"inv_2203"}`)))

	repo := pg.NewNotificationRepo(db)
	got, err := repo.Get(context.Background(), want.ID)
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

/* ─────────────────────────── 2. Create ─────────────────────────── */

func TestNotificationRepo_Create_WithTargets(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	n := &entity.Notification{
		ID: uuid.New(), TenantID: uuid.New(),
		Title: "title", Body: "body",
		Category: entity.CategoryAcademic, TargetMode: entity.TargetExplicit,
		CreatedAt: now,
	}
	targets := []uuid.UUID{uuid.New(), uuid.New()}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WithArgs(n.ID, n.TenantID, "title", "body", "academic", "explicit",
			nil, false, false, false, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notification_targets")).
		WithArgs(n.ID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	repo := pg.NewNotificationRepo(db)
	if err := repo.Create(context.Background(), n, targets); err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestNotificationRepo_Create_AutoHasNoTargets(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	n := &entity.Notification{
		ID: uuid.New(), TenantID: uuid.New(),
		Title: "title", Body: "body",
		Category: entity.CategoryGeneral, TargetMode: entity.TargetAuto,
		CreatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WithArgs(n.ID, n.TenantID, "title", "body", "general", "auto",
			nil, false, false, false, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := pg.NewNotificationRepo(db)
	if err := repo.Create(context.Background(), n, nil); err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ─────────────────────────── 3. MarkSent ─────────────────────────── */

func TestNotificationRepo_MarkSent(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	id := uuid.New()
	sentAt := time.Now()

	mock.ExpectExec("UPDATE notifications").
		WithArgs(sentAt, true, true, false, id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := pg.NewNotificationRepo(db)
	err := repo.MarkSent(context.Background(), id, sentAt,
		[]entity.Channel{entity.ChannelPush, entity.ChannelEmail})
	if err != nil {
		t.Fatalf("MarkSent err=%v", err)
	}
}

func TestNotificationRepo_MarkSent_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	id := uuid.New()
	sentAt := time.Now()

	mock.ExpectExec("UPDATE notifications").
		WithArgs(sentAt, false, false, false, id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := pg.NewNotificationRepo(db)
	if err := repo.MarkSent(context.Background(), id, sentAt, nil); err == nil {
		t.Fatal("MarkSent want error, got nil")
	}
}

/* ─────────────────────────── 4. TargetIDs ─────────────────────────── */

func TestNotificationRepo_TargetIDs(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	nid := uuid.New()
	r1, r2 := uuid.New(), uuid.New()

	mock.ExpectQuery("FROM notification_targets").
		WithArgs(nid).
		WillReturnRows(sqlmock.NewRows([]string{"recipient_id"}).
			AddRow(r1.String()).
			AddRow(r2.String()))

	repo := pg.NewNotificationRepo(db)
	got, err := repo.TargetIDs(context.Background(), nid)
	if err != nil {
		t.Fatalf("TargetIDs err=%v", err)
	}
	if diff := cmp.Diff([]uuid.UUID{r1, r2}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

/* ─────────────────────────── 5. 受信箱 ─────────────────────────── */

func TestNotificationRepo_ListForRecipientPaginated(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	recipientID, tenantID := uuid.New(), uuid.New()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	readAt := now.Add(time.Hour)

	n := &entity.Notification{
		ID: uuid.New(), TenantID: tenantID,
		Title: "t", Body: "b",
		Category: entity.CategoryGeneral, TargetMode: entity.TargetAuto,
		CreatedAt: now,
	}
	cols := append(append([]string{}, notifCols...), "read_at")
	rows := sqlmock.NewRows(cols).
		AddRow(n.ID.String(), n.TenantID.String(), n.Title, n.Body,
			string(n.Category), string(n.TargetMode), nil,
			false, false, false, n.CreatedAt, nil, readAt).
		AddRow(n.ID.String(), n.TenantID.String(), n.Title, n.Body,
			string(n.Category), string(n.TargetMode), nil,
			false, false, false, n.CreatedAt, nil, nil)

	mock.ExpectQuery("FROM notifications n").
		WithArgs(recipientID, tenantID, 20, 0).
		WillReturnRows(rows)

	repo := pg.NewNotificationRepo(db)
	got, err := repo.ListForRecipientPaginated(context.Background(), recipientID, tenantID, 0, 20)
	if err != nil {
		t.Fatalf("ListForRecipientPaginated err=%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d, want 2", len(got))
	}
	if got[0].ReadAt == nil || !got[0].ReadAt.Equal(readAt) {
		t.Fatalf("got[0].ReadAt=%v, want %v", got[0].ReadAt, readAt)
	}
	if got[1].ReadAt != nil {
		t.Fatalf("got[1].ReadAt=%v, want nil", got[1].ReadAt)
	}
}

func TestNotificationRepo_UnreadCount(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	recipientID, tenantID := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("read_at IS NULL")).
		WithArgs(recipientID, tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	repo := pg.NewNotificationRepo(db)
	got, err := repo.UnreadCount(context.Background(), recipientID, tenantID)
	if err != nil || got != 3 {
		t.Fatalf("UnreadCount got=%d err=%v, want 3", got, err)
	}
}

func TestNotificationRepo_CountForRecipient(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	recipientID, tenantID := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(recipientID, tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	repo := pg.NewNotificationRepo(db)
	got, err := repo.CountForRecipient(context.Background(), recipientID, tenantID)
	if err != nil || got != 7 {
		t.Fatalf("CountForRecipient got=%d err=%v, want 7", got, err)
	}
}

/* ─────────────────────────── 6. ListUnsent ─────────────────────────── */

func TestNotificationRepo_ListUnsent(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	n := &entity.Notification{
		ID: uuid.New(), TenantID: uuid.New(),
		Title: "t", Body: "b",
		Category: entity.CategoryGeneral, TargetMode: entity.TargetAuto,
		CreatedAt: now,
	}

	mock.ExpectQuery(regexp.QuoteMeta("sent_at IS NULL")).
		WithArgs(10).
		WillReturnRows(notifRow(n, nil))

	repo := pg.NewNotificationRepo(db)
	got, err := repo.ListUnsent(context.Background(), 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("ListUnsent err=%v len=%d", err, len(got))
	}
	if got[0].SentAt != nil {
		t.Fatalf("SentAt=%v, want nil", got[0].SentAt)
	}
}

/* ─────────────────────────── 7. Delete ─────────────────────────── */

func TestNotificationRepo_Delete(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	id := uuid.New()
	mock.ExpectExec("DELETE FROM notifications").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := pg.NewNotificationRepo(db)
	if err := repo.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete err=%v", err)
	}
}

func TestNotificationRepo_Delete_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	id := uuid.New()
	mock.ExpectExec("DELETE FROM notifications").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := pg.NewNotificationRepo(db)
	if err := repo.Delete(context.Background(), id); err == nil {
		t.Fatal("Delete want error, got nil")
	}
}
