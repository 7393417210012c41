// Package dispatch implements the notification fan-out engine: resolving
// targets, gating channels per recipient preference, calling the channel
// senders behind circuit breakers and writing every outcome to the delivery
// ledger.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"school-notify/internal/domain/entity"
	"school-notify/internal/infra/sender"
	"school-notify/internal/observability/metrics"
	"school-notify/internal/observability/tracing"
	"school-notify/internal/repository"
	"school-notify/internal/resilience/circuitbreaker"
	"school-notify/internal/usecase/target"
)

const defaultMaxConcurrent = 10

// Summary reports what one dispatch pass accomplished. Channel counts are
// recipients newly reached on that channel during this pass; recipients whose
// record already showed a delivered channel are not recounted on resend.
type Summary struct {
	TargetCount    int
	PushCount      int
	EmailCount     int
	SMSCount       int
	LedgerFailures int
}

// Reached reports whether the pass reached at least one recipient on any
// channel.
func (s *Summary) Reached() bool {
	return s.PushCount > 0 || s.EmailCount > 0 || s.SMSCount > 0
}

// channels returns the channels with a non-zero count, for MarkSent.
func (s *Summary) channels() []entity.Channel {
	var via []entity.Channel
	if s.PushCount > 0 {
		via = append(via, entity.ChannelPush)
	}
	if s.EmailCount > 0 {
		via = append(via, entity.ChannelEmail)
	}
	if s.SMSCount > 0 {
		via = append(via, entity.ChannelSMS)
	}
	return via
}

// CreateInput carries the fields needed to create a notification.
type CreateInput struct {
	TenantID   uuid.UUID
	Title      string
	Body       string
	Category   entity.Category
	TargetMode entity.TargetMode
	TargetIDs  []uuid.UUID
	Payload    map[string]any
}

// Engine orchestrates dispatch passes. One pass resolves the recipient set,
// fans out per-recipient send units across a bounded worker pool and finishes
// by stamping the notification's sent markers. A pass is idempotent: the
// ledger is consulted before every channel attempt, so re-running it only
// touches recipients and channels that are not yet delivered.
type Engine struct {
	notificationRepo repository.NotificationRepository
	tenantRepo       repository.TenantRepository
	deliveryRepo     repository.DeliveryRepository
	recipientRepo    repository.RecipientRepository
	resolver         *target.Resolver
	gate             Gate
	senders          map[entity.Channel]sender.Sender
	breakers         map[entity.Channel]*circuitbreaker.CircuitBreaker
	maxConcurrent    int
}

// NewEngine creates a dispatch engine over the given senders. Each sender's
// channel gets its own circuit breaker so a dead SMS gateway cannot suspend
// email delivery.
func NewEngine(
	notificationRepo repository.NotificationRepository,
	tenantRepo repository.TenantRepository,
	deliveryRepo repository.DeliveryRepository,
	recipientRepo repository.RecipientRepository,
	senders []sender.Sender,
	maxConcurrent int,
) (*Engine, error) {
	if len(senders) == 0 {
		return nil, ErrNoSenders
	}
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	byChannel := make(map[entity.Channel]sender.Sender, len(senders))
	breakers := make(map[entity.Channel]*circuitbreaker.CircuitBreaker, len(senders))
	for _, s := range senders {
		ch := s.Channel()
		if !ch.Valid() {
			return nil, fmt.Errorf("sender reports unknown channel %q", ch)
		}
		byChannel[ch] = s
		breakers[ch] = circuitbreaker.New(breakerConfigFor(ch))
	}

	return &Engine{
		notificationRepo: notificationRepo,
		tenantRepo:       tenantRepo,
		deliveryRepo:     deliveryRepo,
		recipientRepo:    recipientRepo,
		resolver: &target.Resolver{
			NotificationRepo: notificationRepo,
			RecipientRepo:    recipientRepo,
		},
		gate:          PreferenceGate{},
		senders:       byChannel,
		breakers:      breakers,
		maxConcurrent: maxConcurrent,
	}, nil
}

func breakerConfigFor(ch entity.Channel) circuitbreaker.Config {
	switch ch {
	case entity.ChannelPush:
		return circuitbreaker.PushGatewayConfig()
	case entity.ChannelEmail:
		return circuitbreaker.SMTPRelayConfig()
	case entity.ChannelSMS:
		return circuitbreaker.SMSGatewayConfig()
	}
	return circuitbreaker.DefaultConfig(string(ch))
}

// CreateAndSend validates and persists a new notification, then runs the
// first dispatch pass. The notification is returned even when the pass
// fails; the sweep job picks up created-but-unsent notifications later.
func (e *Engine) CreateAndSend(ctx context.Context, in CreateInput) (*entity.Notification, *Summary, error) {
	n := &entity.Notification{
		ID:         uuid.New(),
		TenantID:   in.TenantID,
		Title:      in.Title,
		Body:       in.Body,
		Category:   in.Category,
		TargetMode: in.TargetMode,
		Payload:    in.Payload,
		CreatedAt:  time.Now(),
	}
	if err := n.Validate(); err != nil {
		return nil, nil, err
	}
	switch in.TargetMode {
	case entity.TargetExplicit:
		if len(in.TargetIDs) == 0 {
			return nil, nil, &entity.ValidationError{Field: "targetIDs", Message: "must not be empty for explicit targeting"}
		}
	case entity.TargetAuto:
		if len(in.TargetIDs) > 0 {
			return nil, nil, &entity.ValidationError{Field: "targetIDs", Message: "must be empty for auto targeting"}
		}
	}

	tenant, err := e.tenantRepo.Get(ctx, in.TenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("load tenant: %w", err)
	}
	if tenant == nil {
		return nil, nil, ErrTenantNotFound
	}

	if err := e.notificationRepo.Create(ctx, n, in.TargetIDs); err != nil {
		return nil, nil, fmt.Errorf("create notification: %w", err)
	}
	metrics.RecordNotificationCreated(string(n.Category), string(n.TargetMode))

	summary, err := e.Send(ctx, n.ID)
	if err != nil {
		slog.Warn("initial dispatch pass failed, notification remains unsent",
			slog.String("notification_id", n.ID.String()),
			slog.String("error", err.Error()))
		return n, summary, nil
	}
	return n, summary, nil
}

// Send runs one dispatch pass for the notification.
//
// An empty resolved recipient set is not an error: the pass completes with a
// zero summary and the notification stays unsent. A pass that reaches at
// least one recipient stamps sent_at (first pass only) and ORs in the
// per-channel sent flags.
func (e *Engine) Send(ctx context.Context, notificationID uuid.UUID) (*Summary, error) {
	ctx, span := tracing.GetTracer().Start(ctx, "dispatch.send")
	defer span.End()
	span.SetAttributes(attribute.String("notification.id", notificationID.String()))
	start := time.Now()

	n, err := e.notificationRepo.Get(ctx, notificationID)
	if err != nil {
		metrics.RecordDispatchPass("error", 0, time.Since(start))
		return nil, fmt.Errorf("load notification: %w", err)
	}
	if n == nil {
		metrics.RecordDispatchPass("error", 0, time.Since(start))
		return nil, ErrNotificationNotFound
	}

	recipients, err := e.resolver.Resolve(ctx, n)
	if err != nil {
		metrics.RecordDispatchPass("error", 0, time.Since(start))
		return nil, fmt.Errorf("resolve targets: %w", err)
	}
	if len(recipients) == 0 {
		slog.Info("dispatch pass resolved no recipients",
			slog.String("notification_id", n.ID.String()),
			slog.String("target_mode", string(n.TargetMode)))
		metrics.RecordDispatchPass("empty", 0, time.Since(start))
		return &Summary{}, nil
	}
	span.SetAttributes(attribute.Int("dispatch.targets", len(recipients)))

	summary := e.fanOut(ctx, n, e.tenantName(ctx, n.TenantID), recipients)

	result := "error"
	if summary.Reached() {
		result = "reached"
	}
	metrics.RecordDispatchPass(result, summary.TargetCount, time.Since(start))

	if summary.Reached() {
		if err := e.notificationRepo.MarkSent(ctx, n.ID, time.Now(), summary.channels()); err != nil {
			return summary, fmt.Errorf("mark sent: %w", err)
		}
	}

	slog.Info("dispatch pass completed",
		slog.String("notification_id", n.ID.String()),
		slog.Int("targets", summary.TargetCount),
		slog.Int("push", summary.PushCount),
		slog.Int("email", summary.EmailCount),
		slog.Int("sms", summary.SMSCount),
		slog.Int("ledger_failures", summary.LedgerFailures))
	return summary, nil
}

// Resend re-runs a dispatch pass over the full current recipient set. The
// ledger keeps it incremental: already delivered channels are skipped, so
// only recipients added since the original send (or channels that failed)
// are attempted.
func (e *Engine) Resend(ctx context.Context, notificationID uuid.UUID) (*Summary, error) {
	slog.Info("resend requested", slog.String("notification_id", notificationID.String()))
	return e.Send(ctx, notificationID)
}

// fanOut runs one per-recipient send unit per resolved recipient over a
// bounded worker pool. Unit failures are isolated: a ledger error in one unit
// is counted and logged without cancelling the others. Only context
// cancellation stops the pass early, and units already completed keep their
// persisted outcomes.
func (e *Engine) fanOut(ctx context.Context, n *entity.Notification, tenantName string, recipients []*entity.Recipient) *Summary {
	var push, email, sms, ledgerFailures int64

	sem := make(chan struct{}, e.maxConcurrent)
	eg, egCtx := errgroup.WithContext(ctx)

	for _, rec := range recipients {
		rec := rec
		eg.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-egCtx.Done():
				return egCtx.Err()
			}

			activeDispatchWorkers.Inc()
			defer activeDispatchWorkers.Dec()

			delivered, err := e.sendToRecipient(egCtx, n, tenantName, rec)
			for _, ch := range delivered {
				switch ch {
				case entity.ChannelPush:
					atomic.AddInt64(&push, 1)
				case entity.ChannelEmail:
					atomic.AddInt64(&email, 1)
				case entity.ChannelSMS:
					atomic.AddInt64(&sms, 1)
				}
			}
			if err != nil {
				atomic.AddInt64(&ledgerFailures, 1)
				recordLedgerFailure()
				slog.Warn("send unit failed",
					slog.String("notification_id", n.ID.String()),
					slog.String("recipient_id", rec.ID.String()),
					slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Only context cancellation surfaces here; partial progress is already
	// persisted and the summary reflects the units that completed.
	if err := eg.Wait(); err != nil {
		slog.Warn("dispatch pass interrupted",
			slog.String("notification_id", n.ID.String()),
			slog.String("error", err.Error()))
	}

	return &Summary{
		TargetCount:    len(recipients),
		PushCount:      int(push),
		EmailCount:     int(email),
		SMSCount:       int(sms),
		LedgerFailures: int(ledgerFailures),
	}
}

// sendToRecipient is one send unit: ensure the delivery record exists, then
// walk the channels, skipping anything the gate disallows or the ledger
// already shows delivered, and persist every attempted outcome.
//
// Channel attempts are independent: a failed SMS never rolls back a delivered
// push. The returned channels are those both delivered and persisted in this
// unit; a ledger write failure on one channel is reported without aborting
// the remaining channels.
func (e *Engine) sendToRecipient(ctx context.Context, n *entity.Notification, tenantName string, r *entity.Recipient) ([]entity.Channel, error) {
	record, err := e.deliveryRepo.GetOrCreate(ctx, n.ID, r.ID)
	if err != nil {
		return nil, fmt.Errorf("get or create delivery record: %w", err)
	}

	var delivered []entity.Channel
	var ledgerErr error

	for _, ch := range entity.Channels() {
		if !e.gate.Allows(r, ch) {
			recordSkipped(string(ch), "gate")
			continue
		}
		if record.Channel(ch).Status == entity.StateDelivered {
			recordSkipped(string(ch), "already_delivered")
			continue
		}
		snd, ok := e.senders[ch]
		if !ok {
			recordSkipped(string(ch), "no_sender")
			continue
		}

		outcome := e.attempt(ctx, ch, snd, r.Address(ch), renderMessage(tenantName, n, ch))

		if err := e.deliveryRepo.RecordAttempt(ctx, record.ID, ch, outcome); err != nil {
			ledgerErr = fmt.Errorf("record %s attempt: %w", ch, err)
			continue
		}
		if outcome.Delivered {
			delivered = append(delivered, ch)
		}
	}

	return delivered, ledgerErr
}

// attempt calls the sender behind the channel's circuit breaker and maps the
// result to a ledger outcome. An open breaker produces a failed outcome
// without a provider call, so the attempt still lands in the ledger and the
// retry job picks it up after the breaker recovers.
func (e *Engine) attempt(ctx context.Context, ch entity.Channel, snd sender.Sender, address string, msg sender.Message) entity.ChannelOutcome {
	recordAttempt(string(ch))
	start := time.Now()

	res, err := e.breakers[ch].Execute(func() (interface{}, error) {
		result := snd.Send(ctx, address, msg)
		if !result.OK {
			return result, errors.New(result.Error)
		}
		return result, nil
	})
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			recordBreakerOpen(string(ch))
			return entity.ChannelOutcome{Error: "provider suspended: circuit breaker open"}
		}
		recordFailure(string(ch), duration)
		return entity.ChannelOutcome{Error: err.Error()}
	}

	recordSuccess(string(ch), duration)
	result := res.(sender.Result)
	return entity.ChannelOutcome{
		Delivered:         true,
		ProviderMessageID: result.ProviderMessageID,
	}
}

// RedeliverChannel retries a single failed channel of one delivery record.
// The gate and ledger are re-checked so an opt-out or a concurrent delivery
// since the failure suppresses the retry. Returns whether the channel was
// delivered and persisted.
func (e *Engine) RedeliverChannel(ctx context.Context, record *entity.DeliveryRecord, ch entity.Channel) (bool, error) {
	snd, ok := e.senders[ch]
	if !ok {
		recordSkipped(string(ch), "no_sender")
		return false, nil
	}
	if record.Channel(ch).Status == entity.StateDelivered {
		recordSkipped(string(ch), "already_delivered")
		return false, nil
	}

	n, err := e.notificationRepo.Get(ctx, record.NotificationID)
	if err != nil {
		return false, fmt.Errorf("load notification: %w", err)
	}
	if n == nil {
		return false, ErrNotificationNotFound
	}

	r, err := e.recipientRepo.Get(ctx, record.RecipientID)
	if err != nil {
		return false, fmt.Errorf("load recipient: %w", err)
	}
	if r == nil || !e.gate.Allows(r, ch) {
		// Recipient deleted or opted out since the failure. The failed state
		// stays on the record; the attempt budget stops further retries.
		recordSkipped(string(ch), "gate")
		return false, nil
	}

	outcome := e.attempt(ctx, ch, snd, r.Address(ch), renderMessage(e.tenantName(ctx, n.TenantID), n, ch))

	if err := e.deliveryRepo.RecordAttempt(ctx, record.ID, ch, outcome); err != nil {
		recordLedgerFailure()
		return false, fmt.Errorf("record %s attempt: %w", ch, err)
	}
	if !outcome.Delivered {
		return false, nil
	}

	if err := e.notificationRepo.MarkSent(ctx, n.ID, time.Now(), []entity.Channel{ch}); err != nil {
		return true, fmt.Errorf("mark sent: %w", err)
	}
	return true, nil
}

// ChannelHealth reports the configured channels and their circuit breaker
// state, for health endpoints.
type ChannelHealth struct {
	Channel            entity.Channel
	CircuitBreakerOpen bool
}

// Channels returns health information for every configured channel.
func (e *Engine) Channels() []ChannelHealth {
	health := make([]ChannelHealth, 0, len(e.senders))
	for _, ch := range entity.Channels() {
		if _, ok := e.senders[ch]; !ok {
			continue
		}
		health = append(health, ChannelHealth{
			Channel:            ch,
			CircuitBreakerOpen: e.breakers[ch].IsOpen(),
		})
	}
	return health
}

// tenantName loads the tenant display name used in email subjects and SMS
// prefixes. Lookup failures degrade to an unprefixed message rather than
// failing the pass.
func (e *Engine) tenantName(ctx context.Context, tenantID uuid.UUID) string {
	tenant, err := e.tenantRepo.Get(ctx, tenantID)
	if err != nil {
		slog.Warn("tenant lookup failed, sending without tenant prefix",
			slog.String("tenant_id", tenantID.String()),
			slog.String("error", err.Error()))
		return ""
	}
	if tenant == nil {
		return ""
	}
	return tenant.Name
}
