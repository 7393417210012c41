package dispatch

import (
	"fmt"

	"school-notify/internal/domain/entity"
	"school-notify/internal/infra/sender"
)

// renderMessage builds the channel-specific message for a notification.
//
// Push keeps the raw title and body and carries the structured payload so the
// mobile client can deep-link. Email and SMS prefix the tenant name so the
// guardian can tell schools apart in a shared mailbox or phone; SMS collapses
// everything into a single text line (length clamping happens in the sender).
func renderMessage(tenantName string, n *entity.Notification, ch entity.Channel) sender.Message {
	switch ch {
	case entity.ChannelPush:
		payload := make(map[string]any, len(n.Payload)+3)
		for k, v := range n.Payload {
			payload[k] = v
		}
		payload["notification_id"] = n.ID.String()
		payload["tenant_id"] = n.TenantID.String()
		payload["category"] = string(n.Category)
		return sender.Message{
			Title:   n.Title,
			Body:    n.Body,
			Payload: payload,
		}
	case entity.ChannelEmail:
		return sender.Message{
			Title: subjectFor(tenantName, n.Title),
			Body:  n.Body,
		}
	case entity.ChannelSMS:
		return sender.Message{
			Body: smsTextFor(tenantName, n),
		}
	}
	return sender.Message{Title: n.Title, Body: n.Body}
}

func subjectFor(tenantName, title string) string {
	if tenantName == "" {
		return title
	}
	return fmt.Sprintf("[%s] %s", tenantName, title)
}

func smsTextFor(tenantName string, n *entity.Notification) string {
	if tenantName == "" {
		return fmt.Sprintf("%s: %s", n.Title, n.Body)
	}
	return fmt.Sprintf("[%s] %s: %s", tenantName, n.Title, n.Body)
}
