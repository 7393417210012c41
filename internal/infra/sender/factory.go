package sender

import (
	"fmt"

	"school-notify/internal/config"
	"school-notify/internal/domain/entity"
)

// FromConfig builds one sender per channel from the loaded channel
// configuration. Disabled or noop channels get a NoopSender so the engine
// always has a full channel map; the outcome texture of a disabled channel
// is then identical to production, just without provider traffic.
func FromConfig(cfg *config.ChannelsConfig) ([]Sender, error) {
	push, err := gatewaySender(entity.ChannelPush, cfg.Channels.Push)
	if err != nil {
		return nil, err
	}
	sms, err := gatewaySender(entity.ChannelSMS, cfg.Channels.SMS)
	if err != nil {
		return nil, err
	}
	email, err := emailSender(cfg.Channels.Email)
	if err != nil {
		return nil, err
	}
	return []Sender{push, email, sms}, nil
}

func gatewaySender(ch entity.Channel, c config.GatewayChannel) (Sender, error) {
	if !c.Enabled || c.Kind == config.KindNoop || c.Kind == "" {
		return NewNoopSender(ch), nil
	}
	if c.Kind != config.KindWebhook {
		return nil, fmt.Errorf("channel %s: unsupported kind %q", ch, c.Kind)
	}

	gc := GatewayConfig{
		Enabled:  true,
		Endpoint: c.Endpoint,
		APIKey:   c.APIKey(),
		Timeout:  c.Timeout.Std(),
	}
	switch ch {
	case entity.ChannelPush:
		return NewPushSender(gc), nil
	case entity.ChannelSMS:
		return NewSMSSender(gc), nil
	}
	return nil, fmt.Errorf("channel %s: no gateway sender", ch)
}

func emailSender(c config.EmailChannel) (Sender, error) {
	if !c.Enabled || c.Kind == config.KindNoop || c.Kind == "" {
		return NewNoopSender(entity.ChannelEmail), nil
	}
	if c.Kind != config.KindSMTP {
		return nil, fmt.Errorf("channel email: unsupported kind %q", c.Kind)
	}

	return NewEmailSender(SMTPConfig{
		Enabled:  true,
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password(),
		From:     c.From,
		Timeout:  c.Timeout.Std(),
	}), nil
}
