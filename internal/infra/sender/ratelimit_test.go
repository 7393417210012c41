package sender

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("TC-1: should allow request within rate limit", func(t *testing.T) {
		// Arrange
		limiter := NewRateLimiter(10.0, 5) // 10 req/s, burst of 5
		ctx := context.Background()

		// Act
		err := limiter.Allow(ctx)

		// Assert
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("TC-2: should block request exceeding rate limit", func(t *testing.T) {
		// Arrange
		limiter := NewRateLimiter(1.0, 1) // 1 req/s, burst of 1
		ctx := context.Background()

		// Consume the single token
		if err := limiter.Allow(ctx); err != nil {
			t.Fatalf("first request should succeed: %v", err)
		}

		// Act - Second request should be delayed past the short deadline
		ctxWithTimeout, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		err := limiter.Allow(ctxWithTimeout)

		// Assert
		if err == nil {
			t.Error("expected context deadline error, got nil")
		}
	})

	t.Run("TC-3: should allow burst of requests up to burst size", func(t *testing.T) {
		// Arrange
		limiter := NewRateLimiter(1.0, 3)
		ctx := context.Background()

		// Act & Assert - burst tokens are available immediately
		start := time.Now()
		for i := 0; i < 3; i++ {
			if err := limiter.Allow(ctx); err != nil {
				t.Fatalf("burst request %d failed: %v", i+1, err)
			}
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Errorf("burst should not wait, took %v", elapsed)
		}
	})
}
