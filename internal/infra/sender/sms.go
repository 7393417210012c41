package sender

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"school-notify/internal/domain/entity"
	"school-notify/internal/utils/text"
)

// maxSMSLength is the hard cap on outbound SMS text. Gateways reject longer
// concatenated messages outright, so the text is clamped instead.
const maxSMSLength = 640

// SMSSender delivers notification text to phone numbers through an HTTP SMS
// gateway.
type SMSSender struct {
	core *webhookCore
}

// NewSMSSender creates an SMS sender against the configured gateway.
//
// The sender is initialized with:
//   - HTTP client with configured timeout
//   - Rate limiter set to 2 requests/second with burst of 5
//     (SMS gateways meter far more aggressively than push gateways)
func NewSMSSender(config GatewayConfig) *SMSSender {
	return &SMSSender{
		core: newWebhookCore("sms", config, 2, 5),
	}
}

// smsPayload is the JSON body submitted to the SMS gateway. The display text
// is fully rendered by the dispatch layer; only length clamping happens here.
type smsPayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// Channel implements the Sender interface.
func (s *SMSSender) Channel() entity.Channel { return entity.ChannelSMS }

// Send submits the message text to the SMS gateway for the given phone
// number. Delivery failures are reported through the Result.
func (s *SMSSender) Send(ctx context.Context, address string, msg Message) Result {
	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	body := text.Truncate(msg.Body, maxSMSLength, "...")

	if err := s.core.rateLimiter.Allow(ctx); err != nil {
		slog.Warn("sms rate limiter wait aborted",
			slog.String("request_id", requestID),
			slog.Any("error", err))
		return failure(err)
	}

	slog.Debug("submitting sms",
		slog.String("request_id", requestID),
		slog.Int("segments", text.SMSSegments(body)))

	messageID, err := s.core.postWithRetry(ctx, smsPayload{
		To:   address,
		Text: body,
	})
	if err != nil {
		return failure(err)
	}

	return Result{OK: true, ProviderMessageID: messageID}
}
