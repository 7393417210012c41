package sender

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/mail.v2"

	"school-notify/internal/domain/entity"
)

// SMTPConfig contains the connection settings for the email channel.
type SMTPConfig struct {
	// Enabled indicates whether the email channel is enabled
	Enabled bool

	Host     string
	Port     int
	Username string
	Password string

	// From is the sender address on outgoing mail, e.g. "noreply@school.example"
	From string

	// Timeout is the SMTP dial timeout
	Timeout time.Duration
}

// EmailSender delivers notifications over SMTP.
//
// SMTP has no provider-assigned message id, so the sender generates the
// Message-ID header itself and reports it in the Result; the same id is what
// downstream mail servers log.
type EmailSender struct {
	config      SMTPConfig
	dialer      *mail.Dialer
	rateLimiter *RateLimiter
}

// NewEmailSender creates an email sender for the configured SMTP relay.
//
// The sender is initialized with:
//   - SMTP dialer with configured timeout
//   - Rate limiter set to 10 requests/second with burst of 20
//     (typical transactional relay throttle)
func NewEmailSender(config SMTPConfig) *EmailSender {
	dialer := mail.NewDialer(config.Host, config.Port, config.Username, config.Password)
	dialer.Timeout = config.Timeout

	return &EmailSender{
		config:      config,
		dialer:      dialer,
		rateLimiter: NewRateLimiter(10, 20),
	}
}

// Channel implements the Sender interface.
func (e *EmailSender) Channel() entity.Channel { return entity.ChannelEmail }

// Send delivers the message to the given email address. SMTP failures are
// reported through the Result, never returned.
func (e *EmailSender) Send(ctx context.Context, address string, msg Message) Result {
	requestID := uuid.New().String()

	if err := e.rateLimiter.Allow(ctx); err != nil {
		slog.Warn("email rate limiter wait aborted",
			slog.String("request_id", requestID),
			slog.Any("error", err))
		return failure(err)
	}

	// The dialer has no context support; honor cancellation before the
	// blocking dial rather than mid-connection.
	if err := ctx.Err(); err != nil {
		return failure(fmt.Errorf("context canceled before smtp dial: %w", err))
	}

	messageID := e.newMessageID()
	m := e.buildMessage(address, msg, messageID)

	if err := e.dialer.DialAndSend(m); err != nil {
		slog.Warn("email delivery failed",
			slog.String("request_id", requestID),
			slog.Any("error", err))
		return failure(fmt.Errorf("smtp send: %w", err))
	}

	slog.Debug("email delivered",
		slog.String("request_id", requestID),
		slog.String("provider_message_id", messageID))
	return Result{OK: true, ProviderMessageID: messageID}
}

// buildMessage assembles the outgoing mail with the generated Message-ID.
func (e *EmailSender) buildMessage(address string, msg Message, messageID string) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", e.config.From)
	m.SetHeader("To", address)
	m.SetHeader("Subject", msg.Title)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/plain", msg.Body)
	return m
}

// newMessageID generates an RFC 5322 style Message-ID scoped to the sender's
// From domain.
func (e *EmailSender) newMessageID() string {
	domain := "localhost"
	if at := strings.LastIndex(e.config.From, "@"); at >= 0 && at < len(e.config.From)-1 {
		domain = e.config.From[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)
}
