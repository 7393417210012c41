package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"school-notify/internal/domain/entity"
	"school-notify/internal/infra/sender"
	"school-notify/internal/repository"
	"school-notify/internal/usecase/dispatch"
)

/*────────────────────  インメモリスタブ  ────────────────────*/

type stubNotificationRepo struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]*entity.Notification
	targets       map[uuid.UUID][]uuid.UUID
	err           error // 強制エラー注入用
}

func newNotificationStub() *stubNotificationRepo {
	return &stubNotificationRepo{
		notifications: map[uuid.UUID]*entity.Notification{},
		targets:       map[uuid.UUID][]uuid.UUID{},
	}
}

func (s *stubNotificationRepo) Create(_ context.Context, n *entity.Notification, targetIDs []uuid.UUID) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = n
	s.targets[n.ID] = targetIDs
	return nil
}

func (s *stubNotificationRepo) Get(_ context.Context, id uuid.UUID) (*entity.Notification, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifications[id], nil
}

func (s *stubNotificationRepo) TargetIDs(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targets[id], s.err
}

func (s *stubNotificationRepo) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time, via []entity.Channel) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil
	}
	if n.SentAt == nil {
		n.SentAt = &sentAt
	}
	for _, ch := range via {
		switch ch {
		case entity.ChannelPush:
			n.SentViaPush = true
		case entity.ChannelEmail:
			n.SentViaEmail = true
		case entity.ChannelSMS:
			n.SentViaSMS = true
		}
	}
	return nil
}

func (s *stubNotificationRepo) ListForRecipientPaginated(_ context.Context, _, _ uuid.UUID, _, _ int) ([]repository.NotificationWithReadState, error) {
	return nil, nil
}

func (s *stubNotificationRepo) CountForRecipient(_ context.Context, _, _ uuid.UUID) (int64, error) {
	return 0, nil
}

func (s *stubNotificationRepo) UnreadCount(_ context.Context, _, _ uuid.UUID) (int64, error) {
	return 0, nil
}

func (s *stubNotificationRepo) ListUnsent(_ context.Context, _ int) ([]*entity.Notification, error) {
	return nil, nil
}

func (s *stubNotificationRepo) ListByTenantPaginated(_ context.Context, _ uuid.UUID, _, _ int) ([]*entity.Notification, error) {
	return nil, nil
}

func (s *stubNotificationRepo) CountByTenant(_ context.Context, _ uuid.UUID) (int64, error) {
	return 0, nil
}

func (s *stubNotificationRepo) Delete(_ context.Context, _ uuid.UUID) error { return nil }

type stubDeliveryRepo struct {
	mu         sync.Mutex
	records    map[string]*entity.DeliveryRecord
	byID       map[int64]*entity.DeliveryRecord
	nextID     int64
	attemptErr error // 強制エラー注入用
}

func newDeliveryStub() *stubDeliveryRepo {
	return &stubDeliveryRepo{
		records: map[string]*entity.DeliveryRecord{},
		byID:    map[int64]*entity.DeliveryRecord{},
	}
}

func pairKey(notificationID, recipientID uuid.UUID) string {
	return notificationID.String() + "|" + recipientID.String()
}

func (s *stubDeliveryRepo) GetOrCreate(_ context.Context, notificationID, recipientID uuid.UUID) (*entity.DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(notificationID, recipientID)
	if rec, ok := s.records[key]; ok {
		return rec, nil
	}
	s.nextID++
	rec := &entity.DeliveryRecord{
		ID:             s.nextID,
		NotificationID: notificationID,
		RecipientID:    recipientID,
		Push:           entity.ChannelDelivery{Status: entity.StateNotAttempted},
		Email:          entity.ChannelDelivery{Status: entity.StateNotAttempted},
		SMS:            entity.ChannelDelivery{Status: entity.StateNotAttempted},
		CreatedAt:      time.Now(),
	}
	s.records[key] = rec
	s.byID[rec.ID] = rec
	return rec, nil
}

func (s *stubDeliveryRepo) RecordAttempt(_ context.Context, recordID int64, ch entity.Channel, outcome entity.ChannelOutcome) error {
	if s.attemptErr != nil {
		return s.attemptErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[recordID]
	if !ok {
		return fmt.Errorf("record %d not found", recordID)
	}
	cd := rec.Channel(ch)
	cd.Attempts++
	cd.Status = outcome.State()
	cd.Error = outcome.Error
	cd.ProviderMessageID = outcome.ProviderMessageID
	if outcome.Delivered && rec.DeliveredAt == nil {
		now := time.Now()
		rec.DeliveredAt = &now
	}
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *stubDeliveryRepo) MarkRead(_ context.Context, _, _ uuid.UUID, _ time.Time) error {
	return nil
}

func (s *stubDeliveryRepo) Get(_ context.Context, notificationID, recipientID uuid.UUID) (*entity.DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[pairKey(notificationID, recipientID)], nil
}

func (s *stubDeliveryRepo) ListForNotificationPaginated(_ context.Context, _ uuid.UUID, _, _ int) ([]*entity.DeliveryRecord, error) {
	return nil, nil
}

func (s *stubDeliveryRepo) CountForNotification(_ context.Context, _ uuid.UUID) (int64, error) {
	return 0, nil
}

func (s *stubDeliveryRepo) Summary(_ context.Context, _ uuid.UUID) (*entity.DeliverySummary, error) {
	return &entity.DeliverySummary{}, nil
}

func (s *stubDeliveryRepo) FindRetryable(_ context.Context, _ entity.Channel, _, _ int) ([]*entity.DeliveryRecord, error) {
	return nil, nil
}

type stubRecipientRepo struct {
	recipients map[uuid.UUID]*entity.Recipient
	members    map[uuid.UUID]map[uuid.UUID]bool // tenant id -> member set
	audience   map[uuid.UUID][]uuid.UUID        // tenant id -> guardian ids
}

func newRecipientStub() *stubRecipientRepo {
	return &stubRecipientRepo{
		recipients: map[uuid.UUID]*entity.Recipient{},
		members:    map[uuid.UUID]map[uuid.UUID]bool{},
		audience:   map[uuid.UUID][]uuid.UUID{},
	}
}

func (s *stubRecipientRepo) add(tenantID uuid.UUID, r *entity.Recipient) {
	s.recipients[r.ID] = r
	if s.members[tenantID] == nil {
		s.members[tenantID] = map[uuid.UUID]bool{}
	}
	s.members[tenantID][r.ID] = true
	s.audience[tenantID] = append(s.audience[tenantID], r.ID)
}

func (s *stubRecipientRepo) Get(_ context.Context, id uuid.UUID) (*entity.Recipient, error) {
	return s.recipients[id], nil
}

func (s *stubRecipientRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*entity.Recipient, error) {
	var out []*entity.Recipient
	for _, id := range ids {
		if r, ok := s.recipients[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubRecipientRepo) FilterTenantMembers(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, id := range ids {
		if s.members[tenantID][id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *stubRecipientRepo) GuardiansForTenant(_ context.Context, tenantID uuid.UUID) ([]*entity.Recipient, error) {
	var out []*entity.Recipient
	for _, id := range s.audience[tenantID] {
		out = append(out, s.recipients[id])
	}
	return out, nil
}

func (s *stubRecipientRepo) IsTenantMember(_ context.Context, tenantID, recipientID uuid.UUID) (bool, error) {
	return s.members[tenantID][recipientID], nil
}

type stubTenantRepo struct {
	tenants map[uuid.UUID]*entity.Tenant
	err     error
}

func (s *stubTenantRepo) Get(_ context.Context, id uuid.UUID) (*entity.Tenant, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tenants[id], nil
}

type sentCall struct {
	address string
	msg     sender.Message
}

type stubSender struct {
	channel entity.Channel
	fail    bool
	mu      sync.Mutex
	calls   []sentCall
}

func (s *stubSender) Channel() entity.Channel { return s.channel }

func (s *stubSender) Send(_ context.Context, address string, msg sender.Message) sender.Result {
	s.mu.Lock()
	s.calls = append(s.calls, sentCall{address: address, msg: msg})
	s.mu.Unlock()
	if s.fail {
		return sender.Result{Error: "gateway unavailable"}
	}
	return sender.Result{OK: true, ProviderMessageID: "msg-" + address}
}

func (s *stubSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

/*────────────────────  フィクスチャ  ────────────────────*/

type fixture struct {
	engine        *dispatch.Engine
	notifications *stubNotificationRepo
	deliveries    *stubDeliveryRepo
	recipients    *stubRecipientRepo
	tenants       *stubTenantRepo
	push          *stubSender
	email         *stubSender
	sms           *stubSender
	tenantID      uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		notifications: newNotificationStub(),
		deliveries:    newDeliveryStub(),
		recipients:    newRecipientStub(),
		tenants:       &stubTenantRepo{tenants: map[uuid.UUID]*entity.Tenant{}},
		push:          &stubSender{channel: entity.ChannelPush},
		email:         &stubSender{channel: entity.ChannelEmail},
		sms:           &stubSender{channel: entity.ChannelSMS},
		tenantID:      uuid.New(),
	}
	f.tenants.tenants[f.tenantID] = &entity.Tenant{ID: f.tenantID, Name: "Northside Elementary"}

	engine, err := dispatch.NewEngine(
		f.notifications, f.tenants, f.deliveries, f.recipients,
		[]sender.Sender{f.push, f.email, f.sms}, 4,
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	f.engine = engine
	return f
}

func (f *fixture) addGuardian(name string, push, email, sms bool) *entity.Recipient {
	tid := f.tenantID
	r := &entity.Recipient{
		ID:         uuid.New(),
		TenantID:   &tid,
		Role:       entity.RoleGuardian,
		Name:       name,
		PushOptIn:  push,
		EmailOptIn: email,
		SMSOptIn:   sms,
	}
	if push {
		r.PushToken = "tok-" + name
	}
	if email {
		r.Email = name + "@example.com"
	}
	if sms {
		r.Phone = "+15550000000"
	}
	f.recipients.add(f.tenantID, r)
	return r
}

func (f *fixture) createNotification(mode entity.TargetMode, targetIDs []uuid.UUID) *entity.Notification {
	n := &entity.Notification{
		ID:         uuid.New(),
		TenantID:   f.tenantID,
		Title:      "Field trip permission slip",
		Body:       "Please return the signed slip by Friday.",
		Category:   entity.CategoryGeneral,
		TargetMode: mode,
		CreatedAt:  time.Now(),
	}
	_ = f.notifications.Create(context.Background(), n, targetIDs)
	return n
}

/*────────────────────  Send  ────────────────────*/

func TestSend_FanOutAcrossChannels(t *testing.T) {
	f := newFixture(t)
	a := f.addGuardian("alice", true, true, false)
	b := f.addGuardian("bob", false, true, false)
	n := f.createNotification(entity.TargetExplicit, []uuid.UUID{a.ID, b.ID})

	summary, err := f.engine.Send(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if summary.TargetCount != 2 {
		t.Errorf("TargetCount = %d, want 2", summary.TargetCount)
	}
	if summary.PushCount != 1 {
		t.Errorf("PushCount = %d, want 1", summary.PushCount)
	}
	if summary.EmailCount != 2 {
		t.Errorf("EmailCount = %d, want 2", summary.EmailCount)
	}
	if summary.SMSCount != 0 {
		t.Errorf("SMSCount = %d, want 0", summary.SMSCount)
	}
	if summary.LedgerFailures != 0 {
		t.Errorf("LedgerFailures = %d, want 0", summary.LedgerFailures)
	}

	if n.SentAt == nil {
		t.Error("SentAt not set after pass that reached recipients")
	}
	if !n.SentViaPush || !n.SentViaEmail {
		t.Errorf("sent flags = push:%v email:%v, want both true", n.SentViaPush, n.SentViaEmail)
	}
	if n.SentViaSMS {
		t.Error("SentViaSMS set although no SMS was delivered")
	}

	recA, _ := f.deliveries.Get(context.Background(), n.ID, a.ID)
	if recA.Push.Status != entity.StateDelivered || recA.Email.Status != entity.StateDelivered {
		t.Errorf("record A = push:%s email:%s, want both delivered", recA.Push.Status, recA.Email.Status)
	}
	if recA.SMS.Status != entity.StateNotAttempted {
		t.Errorf("record A sms = %s, want pending (never attempted)", recA.SMS.Status)
	}
	recB, _ := f.deliveries.Get(context.Background(), n.ID, b.ID)
	if recB.Push.Status != entity.StateNotAttempted {
		t.Errorf("record B push = %s, want pending (no opt-in)", recB.Push.Status)
	}
	if recB.Email.Status != entity.StateDelivered {
		t.Errorf("record B email = %s, want delivered", recB.Email.Status)
	}

	if f.push.callCount() != 1 {
		t.Errorf("push sender called %d times, want 1", f.push.callCount())
	}
	if f.sms.callCount() != 0 {
		t.Errorf("sms sender called %d times, want 0", f.sms.callCount())
	}
}

func TestSend_EmailSubjectCarriesTenantName(t *testing.T) {
	f := newFixture(t)
	a := f.addGuardian("alice", false, true, false)
	n := f.createNotification(entity.TargetExplicit, []uuid.UUID{a.ID})

	if _, err := f.engine.Send(context.Background(), n.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(f.email.calls) != 1 {
		t.Fatalf("email sender called %d times, want 1", len(f.email.calls))
	}
	got := f.email.calls[0].msg.Title
	want := "[Northside Elementary] Field trip permission slip"
	if got != want {
		t.Errorf("subject = %q, want %q", got, want)
	}
}

func TestSend_SecondPassIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.addGuardian("alice", true, true, false)
	n := f.createNotification(entity.TargetExplicit, []uuid.UUID{a.ID})

	if _, err := f.engine.Send(context.Background(), n.ID); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	firstSentAt := *n.SentAt

	summary, err := f.engine.Resend(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("Resend: %v", err)
	}

	if summary.PushCount != 0 || summary.EmailCount != 0 {
		t.Errorf("resend counts = push:%d email:%d, want 0/0 (already delivered)", summary.PushCount, summary.EmailCount)
	}
	if f.push.callCount() != 1 {
		t.Errorf("push sender called %d times across both passes, want 1", f.push.callCount())
	}
	if !n.SentAt.Equal(firstSentAt) {
		t.Errorf("SentAt changed on resend: %v -> %v", firstSentAt, n.SentAt)
	}

	rec, _ := f.deliveries.Get(context.Background(), n.ID, a.ID)
	if rec.Push.Attempts != 1 {
		t.Errorf("push attempts = %d, want 1", rec.Push.Attempts)
	}
}

func TestSend_FailedChannelDoesNotRollBackDelivered(t *testing.T) {
	f := newFixture(t)
	f.sms.fail = true
	a := f.addGuardian("alice", true, false, true)
	n := f.createNotification(entity.TargetExplicit, []uuid.UUID{a.ID})

	summary, err := f.engine.Send(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if summary.PushCount != 1 || summary.SMSCount != 0 {
		t.Errorf("counts = push:%d sms:%d, want 1/0", summary.PushCount, summary.SMSCount)
	}

	rec, _ := f.deliveries.Get(context.Background(), n.ID, a.ID)
	if rec.Push.Status != entity.StateDelivered {
		t.Errorf("push status = %s, want delivered", rec.Push.Status)
	}
	if rec.SMS.Status != entity.StateFailed {
		t.Errorf("sms status = %s, want failed", rec.SMS.Status)
	}
	if rec.SMS.Error == "" {
		t.Error("sms error text not persisted")
	}
	if rec.SMS.Attempts != 1 {
		t.Errorf("sms attempts = %d, want 1", rec.SMS.Attempts)
	}

	if !n.SentViaPush {
		t.Error("SentViaPush not set")
	}
	if n.SentViaSMS {
		t.Error("SentViaSMS set although SMS failed")
	}
}

func TestSend_EmptyResolutionCompletesWithoutError(t *testing.T) {
	f := newFixture(t)
	outsider := uuid.New() // never added to the tenant
	n := f.createNotification(entity.TargetExplicit, []uuid.UUID{outsider})

	summary, err := f.engine.Send(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if summary.TargetCount != 0 {
		t.Errorf("TargetCount = %d, want 0", summary.TargetCount)
	}
	if n.SentAt != nil {
		t.Error("SentAt set although no recipient was reached")
	}
}

func TestSend_NotificationNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Send(context.Background(), uuid.New())
	if !errors.Is(err, dispatch.ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
}

func TestSend_LedgerFailureIsReportedPerUnit(t *testing.T) {
	f := newFixture(t)
	f.deliveries.attemptErr = errors.New("connection reset")
	a := f.addGuardian("alice", true, true, false)
	b := f.addGuardian("bob", false, true, false)
	n := f.createNotification(entity.TargetExplicit, []uuid.UUID{a.ID, b.ID})

	summary, err := f.engine.Send(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if summary.LedgerFailures != 2 {
		t.Errorf("LedgerFailures = %d, want 2", summary.LedgerFailures)
	}
	if summary.Reached() {
		t.Error("summary reports reached recipients although nothing was persisted")
	}
	if n.SentAt != nil {
		t.Error("SentAt set although no outcome was persisted")
	}
}

func TestSend_GateSkipsChannelWithoutAddress(t *testing.T) {
	f := newFixture(t)
	a := f.addGuardian("alice", false, true, false)
	a.PushOptIn = true // opted in but no token stored
	n := f.createNotification(entity.TargetExplicit, []uuid.UUID{a.ID})

	if _, err := f.engine.Send(context.Background(), n.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if f.push.callCount() != 0 {
		t.Errorf("push sender called %d times for tokenless recipient, want 0", f.push.callCount())
	}
	rec, _ := f.deliveries.Get(context.Background(), n.ID, a.ID)
	if rec.Push.Status != entity.StateNotAttempted {
		t.Errorf("push status = %s, want pending (skipped, not failed)", rec.Push.Status)
	}
}

/*────────────────────  CreateAndSend  ────────────────────*/

func TestCreateAndSend_AutoTargeting(t *testing.T) {
	f := newFixture(t)
	f.addGuardian("alice", true, false, false)
	f.addGuardian("bob", false, true, false)

	n, summary, err := f.engine.CreateAndSend(context.Background(), dispatch.CreateInput{
		TenantID:   f.tenantID,
		Title:      "School closed tomorrow",
		Body:       "Due to heavy snowfall, school is closed.",
		Category:   entity.CategoryGeneral,
		TargetMode: entity.TargetAuto,
	})
	if err != nil {
		t.Fatalf("CreateAndSend: %v", err)
	}

	if n == nil || n.ID == uuid.Nil {
		t.Fatal("notification not created")
	}
	if summary.TargetCount != 2 {
		t.Errorf("TargetCount = %d, want 2", summary.TargetCount)
	}
	if summary.PushCount != 1 || summary.EmailCount != 1 {
		t.Errorf("counts = push:%d email:%d, want 1/1", summary.PushCount, summary.EmailCount)
	}
}

func TestCreateAndSend_ExplicitWithEmptyListRejected(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.engine.CreateAndSend(context.Background(), dispatch.CreateInput{
		TenantID:   f.tenantID,
		Title:      "Reminder",
		Body:       "Body",
		Category:   entity.CategoryGeneral,
		TargetMode: entity.TargetExplicit,
	})

	var ve *entity.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != "targetIDs" {
		t.Errorf("field = %q, want targetIDs", ve.Field)
	}
}

func TestCreateAndSend_AutoWithIDsRejected(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.engine.CreateAndSend(context.Background(), dispatch.CreateInput{
		TenantID:   f.tenantID,
		Title:      "Reminder",
		Body:       "Body",
		Category:   entity.CategoryGeneral,
		TargetMode: entity.TargetAuto,
		TargetIDs:  []uuid.UUID{uuid.New()},
	})

	var ve *entity.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCreateAndSend_UnknownTenant(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.engine.CreateAndSend(context.Background(), dispatch.CreateInput{
		TenantID:   uuid.New(),
		Title:      "Reminder",
		Body:       "Body",
		Category:   entity.CategoryGeneral,
		TargetMode: entity.TargetAuto,
	})
	if !errors.Is(err, dispatch.ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestCreateAndSend_InvalidCategory(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.engine.CreateAndSend(context.Background(), dispatch.CreateInput{
		TenantID:   f.tenantID,
		Title:      "Reminder",
		Body:       "Body",
		Category:   entity.Category("urgent"),
		TargetMode: entity.TargetAuto,
	})

	var ve *entity.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != "category" {
		t.Errorf("field = %q, want category", ve.Field)
	}
}

/*────────────────────  RedeliverChannel  ────────────────────*/

func TestRedeliverChannel_RetriesFailedChannel(t *testing.T) {
	f := newFixture(t)
	f.push.fail = true
	a := f.addGuardian("alice", true, false, false)
	n := f.createNotification(entity.TargetExplicit, []uuid.UUID{a.ID})

	if _, err := f.engine.Send(context.Background(), n.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}
	rec, _ := f.deliveries.Get(context.Background(), n.ID, a.ID)
	if rec.Push.Status != entity.StateFailed {
		t.Fatalf("push status = %s, want failed", rec.Push.Status)
	}

	// ゲートウェイ復旧後のリトライ
	f.push.fail = false
	delivered, err := f.engine.RedeliverChannel(context.Background(), rec, entity.ChannelPush)
	if err != nil {
		t.Fatalf("RedeliverChannel: %v", err)
	}
	if !delivered {
		t.Fatal("expected redelivery to succeed")
	}

	if rec.Push.Status != entity.StateDelivered {
		t.Errorf("push status = %s, want delivered", rec.Push.Status)
	}
	if rec.Push.Attempts != 2 {
		t.Errorf("push attempts = %d, want 2", rec.Push.Attempts)
	}
	if !n.SentViaPush {
		t.Error("SentViaPush not set after successful redelivery")
	}
}

func TestRedeliverChannel_OptOutSuppressesRetry(t *testing.T) {
	f := newFixture(t)
	f.push.fail = true
	a := f.addGuardian("alice", true, false, false)
	n := f.createNotification(entity.TargetExplicit, []uuid.UUID{a.ID})

	if _, err := f.engine.Send(context.Background(), n.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}
	rec, _ := f.deliveries.Get(context.Background(), n.ID, a.ID)

	// 失敗後にオプトアウト
	a.PushOptIn = false
	f.push.fail = false
	callsBefore := f.push.callCount()

	delivered, err := f.engine.RedeliverChannel(context.Background(), rec, entity.ChannelPush)
	if err != nil {
		t.Fatalf("RedeliverChannel: %v", err)
	}
	if delivered {
		t.Fatal("redelivery succeeded although the recipient opted out")
	}
	if f.push.callCount() != callsBefore {
		t.Error("gateway was called for an opted-out recipient")
	}
	if rec.Push.Status != entity.StateFailed {
		t.Errorf("push status = %s, want failed (unchanged)", rec.Push.Status)
	}
}

func TestRedeliverChannel_AlreadyDeliveredIsNoOp(t *testing.T) {
	f := newFixture(t)
	a := f.addGuardian("alice", true, false, false)
	n := f.createNotification(entity.TargetExplicit, []uuid.UUID{a.ID})

	if _, err := f.engine.Send(context.Background(), n.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}
	rec, _ := f.deliveries.Get(context.Background(), n.ID, a.ID)

	delivered, err := f.engine.RedeliverChannel(context.Background(), rec, entity.ChannelPush)
	if err != nil {
		t.Fatalf("RedeliverChannel: %v", err)
	}
	if delivered {
		t.Fatal("expected no-op for already delivered channel")
	}
	if f.push.callCount() != 1 {
		t.Errorf("push sender called %d times, want 1", f.push.callCount())
	}
}

func TestNewEngine_RequiresSenders(t *testing.T) {
	f := newFixture(t)

	_, err := dispatch.NewEngine(f.notifications, f.tenants, f.deliveries, f.recipients, nil, 4)
	if !errors.Is(err, dispatch.ErrNoSenders) {
		t.Fatalf("expected ErrNoSenders, got %v", err)
	}
}
