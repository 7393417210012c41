package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConnectionConfig(t *testing.T) {
	cfg := DefaultConnectionConfig()

	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 10, cfg.MaxIdleConns)
	assert.Equal(t, 1*time.Hour, cfg.ConnMaxLifetime)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxIdleTime)
}

func TestGetConnectionConfigFromEnv_Defaults(t *testing.T) {
	clearPoolEnv()

	cfg := getConnectionConfigFromEnv()

	assert.Equal(t, DefaultConnectionConfig(), cfg)
}

func TestGetConnectionConfigFromEnv_MaxOpenConns(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected int
	}{
		{name: "valid value", envValue: "50", expected: 50},
		{name: "non-numeric falls back", envValue: "invalid", expected: 25},
		{name: "zero falls back", envValue: "0", expected: 25},
		{name: "negative falls back", envValue: "-10", expected: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_MAX_OPEN_CONNS", tt.envValue)

			cfg := getConnectionConfigFromEnv()
			assert.Equal(t, tt.expected, cfg.MaxOpenConns)
		})
	}
}

func TestGetConnectionConfigFromEnv_MaxIdleConns(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected int
	}{
		{name: "valid value", envValue: "20", expected: 20},
		{name: "non-numeric falls back", envValue: "abc", expected: 10},
		{name: "zero falls back", envValue: "0", expected: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_MAX_IDLE_CONNS", tt.envValue)

			cfg := getConnectionConfigFromEnv()
			assert.Equal(t, tt.expected, cfg.MaxIdleConns)
		})
	}
}

func TestGetConnectionConfigFromEnv_ConnMaxLifetime(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{name: "hours", envValue: "2h", expected: 2 * time.Hour},
		{name: "minutes", envValue: "45m", expected: 45 * time.Minute},
		{name: "mixed units", envValue: "1h30m", expected: 90 * time.Minute},
		{name: "not a duration falls back", envValue: "invalid", expected: 1 * time.Hour},
		{name: "zero falls back", envValue: "0s", expected: 1 * time.Hour},
		{name: "negative falls back", envValue: "-1h", expected: 1 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_CONN_MAX_LIFETIME", tt.envValue)

			cfg := getConnectionConfigFromEnv()
			assert.Equal(t, tt.expected, cfg.ConnMaxLifetime)
		})
	}
}

func TestGetConnectionConfigFromEnv_ConnMaxIdleTime(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{name: "valid value", envValue: "15m", expected: 15 * time.Minute},
		{name: "not a duration falls back", envValue: "not-a-duration", expected: 30 * time.Minute},
		{name: "zero falls back", envValue: "0m", expected: 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_CONN_MAX_IDLE_TIME", tt.envValue)

			cfg := getConnectionConfigFromEnv()
			assert.Equal(t, tt.expected, cfg.ConnMaxIdleTime)
		})
	}
}

func TestGetConnectionConfigFromEnv_AllCustomValues(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "100")
	t.Setenv("DB_MAX_IDLE_CONNS", "50")
	t.Setenv("DB_CONN_MAX_LIFETIME", "2h")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45m")

	cfg := getConnectionConfigFromEnv()

	assert.Equal(t, 100, cfg.MaxOpenConns)
	assert.Equal(t, 50, cfg.MaxIdleConns)
	assert.Equal(t, 2*time.Hour, cfg.ConnMaxLifetime)
	assert.Equal(t, 45*time.Minute, cfg.ConnMaxIdleTime)
}

func TestGetConnectionConfigFromEnv_PartialCustomValues(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "75")
	t.Setenv("DB_CONN_MAX_LIFETIME", "3h")

	cfg := getConnectionConfigFromEnv()

	assert.Equal(t, 75, cfg.MaxOpenConns)
	assert.Equal(t, 3*time.Hour, cfg.ConnMaxLifetime)

	// Unset variables keep their defaults.
	assert.Equal(t, 10, cfg.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxIdleTime)
}

func clearPoolEnv() {
	_ = os.Unsetenv("DB_MAX_OPEN_CONNS")
	_ = os.Unsetenv("DB_MAX_IDLE_CONNS")
	_ = os.Unsetenv("DB_CONN_MAX_LIFETIME")
	_ = os.Unsetenv("DB_CONN_MAX_IDLE_TIME")
}

// TestOpen_SuccessfulConnection verifies Open against a real database when one
// is available. CI without a DATABASE_URL skips it.
func TestOpen_SuccessfulConnection(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db := Open()
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

// TestOpen_ConnectionPoolConfiguration verifies Open applies env pool limits.
// sql.DB exposes no getters for the limits, so this only checks the pool
// still serves queries with the custom settings applied.
func TestOpen_ConnectionPoolConfiguration(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	t.Setenv("DB_MAX_OPEN_CONNS", "50")
	t.Setenv("DB_MAX_IDLE_CONNS", "25")

	db := Open()
	defer func() { _ = db.Close() }()

	assert.NotNil(t, db.Stats())

	if err := db.PingContext(context.Background()); err != nil {
		t.Fatalf("ping failed with custom pool config: %v", err)
	}
}

// Open with a missing DATABASE_URL or unreachable server calls log.Fatal,
// which would need a subprocess to assert on. Left to the e2e suite.
