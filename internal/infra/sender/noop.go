package sender

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"school-notify/internal/domain/entity"
)

// NoopSender is a no-operation implementation of the Sender interface. It is
// wired in for channels with no provider configured (local development, test
// environments) so the dispatch path needs no nil checks. This follows the
// Null Object pattern.
//
// Every send succeeds and reports a synthetic provider message id, which
// keeps the delivery ledger exercised end to end without external traffic.
type NoopSender struct {
	channel entity.Channel
}

// NewNoopSender creates a NoopSender for the given channel.
func NewNoopSender(channel entity.Channel) *NoopSender {
	return &NoopSender{channel: channel}
}

// Channel implements the Sender interface.
func (n *NoopSender) Channel() entity.Channel { return n.channel }

// Send does nothing and reports success immediately.
func (n *NoopSender) Send(ctx context.Context, address string, msg Message) Result {
	return Result{
		OK:                true,
		ProviderMessageID: fmt.Sprintf("noop-%s", uuid.New().String()),
	}
}
