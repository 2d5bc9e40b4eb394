// Package effectstest provides recording channels for tests.
package effectstest

import (
	"context"
	"sync"

	"github.com/ksred/remind-me/internal/effects"
)

// Recorder records every effect, notification and haptic it receives. It
// implements the dispatcher interface used by services as well as both
// channel interfaces.
type Recorder struct {
	mu            sync.Mutex
	effects       []effects.Effect
	notifications []effects.Notification
	haptics       []effects.HapticKind
	// Err, when set, is returned by the channel methods after recording
	Err error
}

// Dispatch records effect
func (r *Recorder) Dispatch(ctx context.Context, effect effects.Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = append(r.effects, effect)
}

// SendNotification records n
func (r *Recorder) SendNotification(ctx context.Context, n effects.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
	return r.Err
}

// TriggerHaptic records kind
func (r *Recorder) TriggerHaptic(ctx context.Context, kind effects.HapticKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.haptics = append(r.haptics, kind)
	return r.Err
}

// Effects returns the dispatched effects in order
func (r *Recorder) Effects() []effects.Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]effects.Effect(nil), r.effects...)
}

// NotifyDue returns the dispatched NotifyDue effects in order
func (r *Recorder) NotifyDue() []effects.NotifyDue {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []effects.NotifyDue
	for _, e := range r.effects {
		if n, ok := e.(effects.NotifyDue); ok {
			out = append(out, n)
		}
	}
	return out
}

// Haptics returns the haptic kinds received either as effects or through the channel
func (r *Recorder) Haptics() []effects.HapticKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]effects.HapticKind(nil), r.haptics...)
	for _, e := range r.effects {
		if h, ok := e.(effects.HapticFeedback); ok {
			out = append(out, h.Kind)
		}
	}
	return out
}

// Notifications returns the notifications received through the channel
func (r *Recorder) Notifications() []effects.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]effects.Notification(nil), r.notifications...)
}

// Reset forgets everything recorded so far
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = nil
	r.notifications = nil
	r.haptics = nil
}
