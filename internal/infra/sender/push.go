package sender

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"school-notify/internal/domain/entity"
)

// PushSender delivers notifications to device push tokens through an HTTP
// push gateway.
type PushSender struct {
	core *webhookCore
}

// NewPushSender creates a push sender against the configured gateway.
//
// The sender is initialized with:
//   - HTTP client with configured timeout
//   - Rate limiter set to 50 requests/second with burst of 100
//     (typical push gateway project quota)
func NewPushSender(config GatewayConfig) *PushSender {
	return &PushSender{
		core: newWebhookCore("push", config, 50, 100),
	}
}

// pushPayload is the JSON body submitted to the push gateway.
type pushPayload struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// Channel implements the Sender interface.
func (p *PushSender) Channel() entity.Channel { return entity.ChannelPush }

// Send submits the message to the push gateway for the given device token.
// Delivery failures are reported through the Result; the per-attempt retry
// and rate limiting live in the shared webhook core.
func (p *PushSender) Send(ctx context.Context, address string, msg Message) Result {
	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	if err := p.core.rateLimiter.Allow(ctx); err != nil {
		slog.Warn("push rate limiter wait aborted",
			slog.String("request_id", requestID),
			slog.Any("error", err))
		return failure(err)
	}

	messageID, err := p.core.postWithRetry(ctx, pushPayload{
		To:    address,
		Title: msg.Title,
		Body:  msg.Body,
		Data:  msg.Payload,
	})
	if err != nil {
		return failure(err)
	}

	return Result{OK: true, ProviderMessageID: messageID}
}
