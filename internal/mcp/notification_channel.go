package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ksred/remind-me/internal/effects"
)

// EffectNotificationMethod is the JSON-RPC method of effect notifications sent to clients
const EffectNotificationMethod = "notifications/remind-me/effect"

// NotificationChannel forwards effects to every connected MCP client. Delivery
// is fire-and-forget: clients that are not listening simply drop the message.
type NotificationChannel struct {
	mcpServer *server.MCPServer
}

// NewNotificationChannel creates a channel that broadcasts through s
func NewNotificationChannel(s *Server) *NotificationChannel {
	return &NotificationChannel{mcpServer: s.mcpServer}
}

// SendNotification broadcasts a notify_due effect
func (c *NotificationChannel) SendNotification(ctx context.Context, n effects.Notification) error {
	params := map[string]any{
		"effect": effects.NotifyDue{}.Name(),
		"title":  n.Title,
		"body":   n.Body,
	}
	if n.ScheduledAt != nil {
		params["scheduled_at"] = n.ScheduledAt.UTC().Format(time.RFC3339)
	}
	c.mcpServer.SendNotificationToAllClients(EffectNotificationMethod, params)
	return nil
}

// TriggerHaptic broadcasts a haptic_feedback effect
func (c *NotificationChannel) TriggerHaptic(ctx context.Context, kind effects.HapticKind) error {
	c.mcpServer.SendNotificationToAllClients(EffectNotificationMethod, map[string]any{
		"effect": effects.HapticFeedback{}.Name(),
		"kind":   string(kind),
	})
	return nil
}
