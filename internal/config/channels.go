package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"school-notify/internal/domain/entity"
)

// Channel sender kinds.
const (
	KindWebhook = "webhook"
	KindSMTP    = "smtp"
	KindNoop    = "noop"
)

// Duration decodes YAML scalars like "30s" via time.ParseDuration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ChannelsConfig represents the channel sender configuration loaded from
// YAML. Secrets are never stored in the file; each entry names the
// environment variable the secret is read from.
type ChannelsConfig struct {
	Channels struct {
		Push  GatewayChannel `yaml:"push"`
		Email EmailChannel   `yaml:"email"`
		SMS   GatewayChannel `yaml:"sms"`
	} `yaml:"channels"`
}

// GatewayChannel configures an HTTP gateway backed channel (push, SMS).
type GatewayChannel struct {
	Kind      string   `yaml:"kind"`
	Enabled   bool     `yaml:"enabled"`
	Endpoint  string   `yaml:"endpoint"`
	APIKeyEnv string   `yaml:"api_key_env"`
	Timeout   Duration `yaml:"timeout"`
}

// APIKey reads the gateway API key from the configured environment variable.
func (c GatewayChannel) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// EmailChannel configures the SMTP relay channel.
type EmailChannel struct {
	Kind        string   `yaml:"kind"`
	Enabled     bool     `yaml:"enabled"`
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	Username    string   `yaml:"username"`
	PasswordEnv string   `yaml:"password_env"`
	From        string   `yaml:"from"`
	Timeout     Duration `yaml:"timeout"`
}

// Password reads the SMTP password from the configured environment variable.
func (c EmailChannel) Password() string {
	if c.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.PasswordEnv)
}

// LoadChannelsConfig loads channel sender configuration from a YAML file.
// The path parameter is expected to come from a trusted source (command-line argument or hardcoded default).
func LoadChannelsConfig(path string) (*ChannelsConfig, error) {
	// #nosec G304 -- path is provided by trusted source (CLI arg or config), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ChannelsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateChannelsConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// validateChannelsConfig validates the loaded configuration.
func validateChannelsConfig(config *ChannelsConfig) error {
	if err := validateGatewayChannel("push", config.Channels.Push); err != nil {
		return err
	}
	if err := validateGatewayChannel("sms", config.Channels.SMS); err != nil {
		return err
	}
	return validateEmailChannel(config.Channels.Email)
}

func validateGatewayChannel(name string, c GatewayChannel) error {
	switch c.Kind {
	case KindNoop, "":
		return nil
	case KindWebhook:
	default:
		return fmt.Errorf("%s: kind must be %q or %q", name, KindWebhook, KindNoop)
	}
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("%s: endpoint is required", name)
	}
	if err := entity.ValidateEndpointURL(c.Endpoint); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func validateEmailChannel(c EmailChannel) error {
	switch c.Kind {
	case KindNoop, "":
		return nil
	case KindSMTP:
	default:
		return fmt.Errorf("email: kind must be %q or %q", KindSMTP, KindNoop)
	}
	if !c.Enabled {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("email: host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("email: port must be between 1 and 65535")
	}
	if c.From == "" {
		return fmt.Errorf("email: from address is required")
	}
	return nil
}
