package effects

import (
	"fmt"

	"github.com/ksred/remind-me/internal/models"
)

// Effect is a side effect requested by a task lifecycle event. The concrete
// types are NotifyDue and HapticFeedback.
type Effect interface {
	// Name identifies the effect type in logs and envelopes
	Name() string
}

// NotifyDue asks the host to notify the user that a task's scheduled time has arrived
type NotifyDue struct {
	Task models.Task
}

func (NotifyDue) Name() string { return "notify_due" }

// HapticFeedback asks the host to play a haptic pattern
type HapticFeedback struct {
	Kind HapticKind
}

func (HapticFeedback) Name() string { return "haptic_feedback" }

// HapticKind names a haptic pattern understood by the host
type HapticKind string

const (
	HapticImpactLight         HapticKind = "impact_light"
	HapticImpactMedium        HapticKind = "impact_medium"
	HapticImpactHeavy         HapticKind = "impact_heavy"
	HapticImpactSoft          HapticKind = "impact_soft"
	HapticImpactRigid         HapticKind = "impact_rigid"
	HapticSelection           HapticKind = "selection"
	HapticNotificationSuccess HapticKind = "notification_success"
	HapticNotificationWarning HapticKind = "notification_warning"
	HapticNotificationError   HapticKind = "notification_error"
)

var hapticKinds = map[HapticKind]bool{
	HapticImpactLight:         true,
	HapticImpactMedium:        true,
	HapticImpactHeavy:         true,
	HapticImpactSoft:          true,
	HapticImpactRigid:         true,
	HapticSelection:           true,
	HapticNotificationSuccess: true,
	HapticNotificationWarning: true,
	HapticNotificationError:   true,
}

// Valid reports whether k is a known haptic kind
func (k HapticKind) Valid() bool {
	return hapticKinds[k]
}

// ParseHapticKind converts a string to a HapticKind
func ParseHapticKind(s string) (HapticKind, error) {
	k := HapticKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown haptic kind %q", s)
	}
	return k, nil
}
