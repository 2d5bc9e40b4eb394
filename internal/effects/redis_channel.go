package effects

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel effects are published on
const DefaultRedisChannel = "remind-me:effects"

// Envelope is the JSON message published for every effect
type Envelope struct {
	Effect       string        `json:"effect"`
	Notification *Notification `json:"notification,omitempty"`
	Haptic       HapticKind    `json:"haptic,omitempty"`
	SentAt       time.Time     `json:"sent_at"`
}

// RedisChannel publishes effects to a Redis pub/sub channel so that a UI
// process can subscribe and render them.
type RedisChannel struct {
	client  *redis.Client
	channel string
	now     func() time.Time
}

// NewRedisChannel creates a channel publishing on the given pub/sub channel
func NewRedisChannel(client *redis.Client, channel string) *RedisChannel {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisChannel{
		client:  client,
		channel: channel,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SendNotification publishes a notify_due envelope
func (c *RedisChannel) SendNotification(ctx context.Context, n Notification) error {
	return c.publish(ctx, Envelope{Effect: NotifyDue{}.Name(), Notification: &n})
}

// TriggerHaptic publishes a haptic_feedback envelope
func (c *RedisChannel) TriggerHaptic(ctx context.Context, kind HapticKind) error {
	return c.publish(ctx, Envelope{Effect: HapticFeedback{}.Name(), Haptic: kind})
}

func (c *RedisChannel) publish(ctx context.Context, env Envelope) error {
	env.SentAt = c.now()
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode %s envelope: %w", env.Effect, err)
	}
	if err := c.client.Publish(ctx, c.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", env.Effect, c.channel, err)
	}
	return nil
}
