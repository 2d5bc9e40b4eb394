package effects

import (
	"context"

	"github.com/rs/zerolog"
)

// LogChannel writes effects to the structured log. It is the default sink
// when no host channel is attached.
type LogChannel struct {
	logger zerolog.Logger
}

// NewLogChannel creates a log-backed channel
func NewLogChannel(logger zerolog.Logger) *LogChannel {
	return &LogChannel{logger: logger.With().Str("component", "log_channel").Logger()}
}

// SendNotification logs the notification
func (c *LogChannel) SendNotification(ctx context.Context, n Notification) error {
	event := c.logger.Info().
		Str("effect", NotifyDue{}.Name()).
		Str("title", n.Title).
		Str("body", n.Body)
	if n.ScheduledAt != nil {
		event = event.Time("scheduled_at", *n.ScheduledAt)
	}
	event.Msg("Notification")
	return nil
}

// TriggerHaptic logs the haptic request
func (c *LogChannel) TriggerHaptic(ctx context.Context, kind HapticKind) error {
	c.logger.Debug().
		Str("effect", HapticFeedback{}.Name()).
		Str("kind", string(kind)).
		Msg("Haptic feedback")
	return nil
}
