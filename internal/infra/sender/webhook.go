package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// GatewayConfig contains the connection settings for an HTTP provider
// gateway (push or SMS).
type GatewayConfig struct {
	// Enabled indicates whether the channel is enabled
	Enabled bool

	// Endpoint is the gateway's message submission URL
	Endpoint string

	// APIKey is sent as a bearer token on every request
	APIKey string

	// Timeout is the HTTP request timeout for gateway calls
	Timeout time.Duration
}

// gatewayResponse is the JSON body returned by the push and SMS gateways on
// accepted submissions.
type gatewayResponse struct {
	MessageID string `json:"message_id"`
}

// gatewayErrorResponse is the error body returned by the gateways.
type gatewayErrorResponse struct {
	Message    string  `json:"message"`
	Code       int     `json:"code"`
	RetryAfter float64 `json:"retry_after"` // In seconds
}

// webhookCore is the shared HTTP submission path used by the push and SMS
// senders. It owns the HTTP client, the per-gateway rate limiter and the
// retry loop; the concrete senders only build payloads and interpret results.
type webhookCore struct {
	name        string // channel name for logging
	config      GatewayConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

func newWebhookCore(name string, config GatewayConfig, requestsPerSecond float64, burst int) *webhookCore {
	return &webhookCore{
		name:   name,
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: NewRateLimiter(requestsPerSecond, burst),
	}
}

// post submits one payload to the gateway and returns the provider message id.
//
// Error types:
//   - 429: Rate limit error (retryable, contains retry_after duration)
//   - 4xx (non-429): Client error (non-retryable)
//   - 5xx: Server error (retryable)
//   - Network error: Connection/timeout error (retryable)
func (w *webhookCore) post(ctx context.Context, payload any) (string, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal gateway payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if w.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.config.APIKey)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Read response body for the message id or error message
	body, _ := io.ReadAll(resp.Body)

	// Success
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var accepted gatewayResponse
		if err := json.Unmarshal(body, &accepted); err != nil {
			// Gateways are not required to return a body; delivery still
			// counts, only the correlation id is lost.
			return "", nil
		}
		return accepted.MessageID, nil
	}

	// Rate limit error (429)
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := extractRetryAfter(resp, body)
		return "", &RateLimitError{
			Message:    fmt.Sprintf("%s gateway rate limit exceeded", w.name),
			RetryAfter: retryAfter,
		}
	}

	// Client error (4xx, non-retryable)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s gateway client error: %s", w.name, string(body)),
		}
	}

	// Server error (5xx, retryable)
	if resp.StatusCode >= 500 {
		return "", &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s gateway server error: %s", w.name, string(body)),
		}
	}

	return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

// extractRetryAfter extracts retry_after duration from a gateway 429 response.
// It tries to parse from the JSON body first, then falls back to the
// Retry-After header, then to a 5 second default.
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var gatewayErr gatewayErrorResponse
	if err := json.Unmarshal(body, &gatewayErr); err == nil && gatewayErr.RetryAfter > 0 {
		return time.Duration(gatewayErr.RetryAfter * float64(time.Second))
	}

	if retryAfterHeader := resp.Header.Get("Retry-After"); retryAfterHeader != "" {
		if seconds, err := strconv.Atoi(retryAfterHeader); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return 5 * time.Second
}

// postWithRetry submits a payload with retry logic.
//
// Retry strategy:
//   - Max attempts: 2
//   - Base delay: 2 seconds
//   - 429 errors: Use retry_after from the gateway response
//   - Server errors (5xx) and network errors: Linear backoff (2s, 4s)
//   - Client errors (4xx): No retry, fail immediately
//
// All attempts are logged with request_id for tracing.
func (w *webhookCore) postWithRetry(ctx context.Context, payload any) (string, error) {
	const (
		maxAttempts = 2
		baseDelay   = 2 * time.Second
	)

	requestID, _ := ctx.Value(requestIDKey).(string)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		messageID, err := w.post(ctx, payload)

		// Success
		if err == nil {
			slog.Debug("gateway submission accepted",
				slog.String("request_id", requestID),
				slog.String("channel", w.name),
				slog.String("provider_message_id", messageID),
				slog.Int("attempt", attempt))
			return messageID, nil
		}

		lastErr = err

		// Handle rate limit error (429)
		if rateLimitErr, ok := is429Error(err); ok {
			slog.Warn("gateway rate limit hit, backing off",
				slog.String("request_id", requestID),
				slog.String("channel", w.name),
				slog.Duration("retry_after", rateLimitErr.RetryAfter),
				slog.Int("attempt", attempt))

			select {
			case <-time.After(rateLimitErr.RetryAfter):
				continue
			case <-ctx.Done():
				return "", fmt.Errorf("context canceled during rate limit backoff: %w", ctx.Err())
			}
		}

		// Handle non-retryable errors (4xx client errors)
		if !isRetryableGatewayError(err) {
			slog.Warn("gateway submission failed with non-retryable error",
				slog.String("request_id", requestID),
				slog.String("channel", w.name),
				slog.Any("error", err),
				slog.Int("attempt", attempt))
			return "", err
		}

		// Retry on retryable errors (5xx server errors, network errors)
		if attempt < maxAttempts {
			delay := baseDelay * time.Duration(attempt)
			slog.Warn("gateway submission failed, retrying",
				slog.String("request_id", requestID),
				slog.String("channel", w.name),
				slog.Any("error", err),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))

			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return "", fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
			}
		}
	}

	return "", fmt.Errorf("%s gateway submission failed after %d attempts: %w", w.name, maxAttempts, lastErr)
}
