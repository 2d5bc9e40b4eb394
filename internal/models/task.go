package models

import (
	"errors"
	"strings"
	"time"
)

// Task is the sole domain entity: a to-do item with an optional reminder time
type Task struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Completed     bool       `json:"completed"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TaskState is the lifecycle state derived from a task's fields. It is never persisted.
type TaskState string

const (
	StatePending   TaskState = "pending"
	StateScheduled TaskState = "scheduled"
	StateDue       TaskState = "due"
	StateCompleted TaskState = "completed"
)

// Validate checks the fields every persisted task must carry
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("id cannot be empty")
	}
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("title cannot be empty")
	}
	if !t.CreatedAt.IsZero() && t.UpdatedAt.Before(t.CreatedAt) {
		return errors.New("updated_at cannot precede created_at")
	}
	return nil
}

// HasSchedule reports whether the task carries a reminder time
func (t *Task) HasSchedule() bool {
	return t.ScheduledTime != nil
}

// IsDueAt reports whether the task's reminder time has passed without completion
func (t *Task) IsDueAt(now time.Time) bool {
	return !t.Completed && t.ScheduledTime != nil && !t.ScheduledTime.After(now)
}

// StateAt derives the lifecycle state at the given instant
func (t *Task) StateAt(now time.Time) TaskState {
	switch {
	case t.Completed:
		return StateCompleted
	case t.ScheduledTime == nil:
		return StatePending
	case t.IsDueAt(now):
		return StateDue
	default:
		return StateScheduled
	}
}

// TaskPatch lists the fields an update may change. Nil fields are left alone.
type TaskPatch struct {
	Title              *string
	ScheduledTime      *time.Time
	ClearScheduledTime bool
	Completed          *bool
}

// IsEmpty reports whether the patch changes nothing but updated_at
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.ScheduledTime == nil && !p.ClearScheduledTime && p.Completed == nil
}

// Apply returns a copy of the task with the patch applied. Timestamps are not touched.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.ClearScheduledTime {
		t.ScheduledTime = nil
	} else if p.ScheduledTime != nil {
		scheduled := p.ScheduledTime.UTC()
		t.ScheduledTime = &scheduled
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}
