package effects

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Notification is the payload delivered to a NotificationChannel
type Notification struct {
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// NotificationChannel delivers user-visible notifications. Implemented by the host.
type NotificationChannel interface {
	SendNotification(ctx context.Context, n Notification) error
}

// HapticChannel plays haptic patterns. Implemented by the host.
type HapticChannel interface {
	TriggerHaptic(ctx context.Context, kind HapticKind) error
}

// Dispatcher routes effects to the registered channels. It keeps no state
// between calls; delivery failures are logged and never returned.
type Dispatcher struct {
	notifiers []NotificationChannel
	haptics   []HapticChannel
	logger    zerolog.Logger
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithNotificationChannel registers a notification channel
func WithNotificationChannel(ch NotificationChannel) Option {
	return func(d *Dispatcher) {
		if ch != nil {
			d.notifiers = append(d.notifiers, ch)
		}
	}
}

// WithHapticChannel registers a haptic channel
func WithHapticChannel(ch HapticChannel) Option {
	return func(d *Dispatcher) {
		if ch != nil {
			d.haptics = append(d.haptics, ch)
		}
	}
}

// NewDispatcher creates a dispatcher over the given channels
func NewDispatcher(logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger: logger.With().Str("component", "dispatcher").Logger(),
	}
	d.Register(opts...)
	return d
}

// Register adds channels after construction. It is not safe to call
// concurrently with Dispatch, so wire every channel before the first effect.
func (d *Dispatcher) Register(opts ...Option) {
	for _, opt := range opts {
		opt(d)
	}
}

// Channels reports how many notification and haptic channels are registered
func (d *Dispatcher) Channels() (notifiers, haptics int) {
	return len(d.notifiers), len(d.haptics)
}

// Dispatch delivers effect to every channel of the matching kind
func (d *Dispatcher) Dispatch(ctx context.Context, effect Effect) {
	switch e := effect.(type) {
	case NotifyDue:
		d.notify(ctx, e)
	case *NotifyDue:
		d.notify(ctx, *e)
	case HapticFeedback:
		d.haptic(ctx, e)
	case *HapticFeedback:
		d.haptic(ctx, *e)
	default:
		d.logger.Warn().Msgf("Unknown effect type %T dropped", effect)
	}
}

func (d *Dispatcher) notify(ctx context.Context, e NotifyDue) {
	if len(d.notifiers) == 0 {
		d.logger.Debug().Str("task_id", e.Task.ID).Msg("No notification channel registered, dropping notification")
		return
	}

	n := NotificationFor(e)
	for _, ch := range d.notifiers {
		if err := ch.SendNotification(ctx, n); err != nil {
			d.logger.Warn().
				Err(err).
				Str("task_id", e.Task.ID).
				Msg("Failed to deliver notification")
		}
	}
}

func (d *Dispatcher) haptic(ctx context.Context, e HapticFeedback) {
	if len(d.haptics) == 0 {
		d.logger.Debug().Str("kind", string(e.Kind)).Msg("No haptic channel registered, dropping haptic")
		return
	}

	for _, ch := range d.haptics {
		if err := ch.TriggerHaptic(ctx, e.Kind); err != nil {
			d.logger.Warn().
				Err(err).
				Str("kind", string(e.Kind)).
				Msg("Failed to trigger haptic")
		}
	}
}

// NotificationFor builds the user-facing notification for a due task
func NotificationFor(e NotifyDue) Notification {
	n := Notification{
		Title: e.Task.Title,
		Body:  "Reminder",
	}
	if e.Task.ScheduledTime != nil {
		at := e.Task.ScheduledTime.UTC()
		n.ScheduledAt = &at
		n.Body = "Due at " + at.Format("Mon 2 Jan 15:04 MST")
	}
	return n
}
