package services

import (
	"context"
	"iter"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ksred/remind-me/internal/database"
	"github.com/ksred/remind-me/internal/effects"
	"github.com/ksred/remind-me/internal/models"
	"github.com/ksred/remind-me/internal/utils"
)

// TaskRepository is the persistence the service depends on
type TaskRepository interface {
	Insert(ctx context.Context, task models.Task) (models.Task, error)
	Get(ctx context.Context, id string) (models.Task, error)
	Update(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context, opts database.ListOptions) iter.Seq2[models.Task, error]
	List(ctx context.Context, opts database.ListOptions) ([]models.Task, error)
	Count(ctx context.Context) (int64, error)
}

// EffectDispatcher receives the side effects produced by lifecycle events
type EffectDispatcher interface {
	Dispatch(ctx context.Context, effect effects.Effect)
}

// TaskService owns task lifecycle rules and turns state transitions into effects
type TaskService struct {
	store      TaskRepository
	dispatcher EffectDispatcher
	logger     zerolog.Logger
	now        func() time.Time
	newID      func() string

	completeHaptic effects.HapticKind

	// lifecycle serializes read-check-write transitions so each emits its effect once
	lifecycle sync.Mutex

	// notified maps task id to the scheduled time already notified for it.
	// dismissed holds the instances a reopen passed over without notifying.
	notifiedMu sync.Mutex
	notified   map[string]time.Time
	dismissed  map[string]time.Time

	sweeping atomic.Bool
}

// ServiceOption configures a TaskService
type ServiceOption func(*TaskService)

// WithClock overrides the service clock
func WithClock(now func() time.Time) ServiceOption {
	return func(s *TaskService) { s.now = now }
}

// WithCompleteHaptic sets the haptic played when a task is completed
func WithCompleteHaptic(kind effects.HapticKind) ServiceOption {
	return func(s *TaskService) { s.completeHaptic = kind }
}

// WithIDGenerator overrides task ID generation
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *TaskService) { s.newID = newID }
}

// NewTaskService creates a new instance of TaskService
func NewTaskService(store TaskRepository, dispatcher EffectDispatcher, logger zerolog.Logger, opts ...ServiceOption) *TaskService {
	s := &TaskService{
		store:          store,
		dispatcher:     dispatcher,
		logger:         utils.ForComponent(logger, "task_service"),
		now:            func() time.Time { return time.Now().UTC() },
		newID:          newTaskID,
		completeHaptic: effects.HapticSelection,
		notified:       make(map[string]time.Time),
		dismissed:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newTaskID returns a time-ordered UUID, falling back to a random one
func newTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Now returns the service clock's current time
func (s *TaskService) Now() time.Time {
	return s.now()
}

// CreateTask stores a new open task. No effect is emitted.
func (s *TaskService) CreateTask(ctx context.Context, title string, scheduledTime *time.Time) (models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Task{}, utils.RequiredFieldError("title")
	}

	task := models.Task{
		ID:    s.newID(),
		Title: title,
	}
	if scheduledTime != nil {
		at := scheduledTime.UTC()
		task.ScheduledTime = &at
	}

	created, err := s.store.Insert(ctx, task)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create task")
		return models.Task{}, err
	}

	s.logger.Info().
		Str("task_id", created.ID).
		Bool("scheduled", created.HasSchedule()).
		Msg("Task created")

	return created, nil
}

// UpdateTask edits the title and/or schedule of a task. A changed schedule
// starts a new due instance. No effect is emitted.
func (s *TaskService) UpdateTask(ctx context.Context, id string, req UpdateRequest) (models.Task, error) {
	if req.IsEmpty() {
		return models.Task{}, utils.WrapValidationError("", "no fields to update")
	}

	patch := models.TaskPatch{ClearScheduledTime: req.ClearSchedule}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return models.Task{}, utils.InvalidFieldError("title", "cannot be empty")
		}
		patch.Title = &title
	}
	if req.ScheduledTime != nil && !req.ClearSchedule {
		at := req.ScheduledTime.UTC()
		patch.ScheduledTime = &at
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	before, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Task{}, err
	}

	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return models.Task{}, err
	}

	if !sameSchedule(before.ScheduledTime, updated.ScheduledTime) {
		s.forget(id)
	}

	s.logger.Info().Str("task_id", id).Msg("Task updated")
	return updated, nil
}

// CompleteTask marks an open task as done and emits the completion haptic
func (s *TaskService) CompleteTask(ctx context.Context, id string) (models.Task, error) {
	s.lifecycle.Lock()
	task, err := s.store.Get(ctx, id)
	if err != nil {
		s.lifecycle.Unlock()
		return models.Task{}, err
	}
	if task.Completed {
		s.lifecycle.Unlock()
		return task, &utils.AlreadyCompletedError{ID: id}
	}

	done := true
	completed, err := s.store.Update(ctx, id, models.TaskPatch{Completed: &done})
	s.lifecycle.Unlock()
	if err != nil {
		return models.Task{}, err
	}

	s.dispatcher.Dispatch(ctx, effects.HapticFeedback{Kind: s.completeHaptic})

	s.logger.Info().Str("task_id", id).Msg("Task completed")
	return completed, nil
}

// ReopenTask returns a completed task to the open states. If its scheduled
// time has already passed, that due instance counts as notified and the task
// reads as pending until it is rescheduled.
func (s *TaskService) ReopenTask(ctx context.Context, id string) (models.Task, error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	task, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if !task.Completed {
		return task, &utils.NotCompletedError{ID: id}
	}

	open := false
	reopened, err := s.store.Update(ctx, id, models.TaskPatch{Completed: &open})
	if err != nil {
		return models.Task{}, err
	}

	if reopened.ScheduledTime != nil && !reopened.ScheduledTime.After(s.now()) {
		s.dismiss(id, *reopened.ScheduledTime)
	}

	s.logger.Info().
		Str("task_id", id).
		Str("state", string(s.StateOf(reopened, s.now()))).
		Msg("Task reopened")
	return reopened, nil
}

// DeleteTask removes a task permanently. No effect is emitted.
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.forget(id)

	s.logger.Info().Str("task_id", id).Msg("Task deleted")
	return nil
}

// GetTask returns a single task
func (s *TaskService) GetTask(ctx context.Context, id string) (models.Task, error) {
	return s.store.Get(ctx, id)
}

// ListTasks returns every task in creation order
func (s *TaskService) ListTasks(ctx context.Context, req ListRequest) ([]models.Task, error) {
	tasks, err := s.store.List(ctx, database.ListOptions{Descending: req.NewestFirst})
	if err != nil {
		return nil, err
	}

	if req.IncompleteFirst {
		sort.SliceStable(tasks, func(i, j int) bool {
			return !tasks[i].Completed && tasks[j].Completed
		})
	}
	return tasks, nil
}

// CountTasks returns the number of stored tasks
func (s *TaskService) CountTasks(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

// CheckDue emits one NotifyDue for every open task whose scheduled time is at
// or before now and whose current due instance has not been notified yet.
// Only one sweep runs at a time; a request arriving during a sweep returns
// immediately with Skipped set.
func (s *TaskService) CheckDue(ctx context.Context, now time.Time) (*SweepResult, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Debug().Msg("Sweep already running, skipping")
		return &SweepResult{Skipped: true, Notified: []string{}}, nil
	}
	defer s.sweeping.Store(false)

	result := &SweepResult{Notified: []string{}}
	for task, err := range s.store.ListAll(ctx, database.ListOptions{}) {
		if err != nil {
			return result, err
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.Scanned++
		if s.StateOf(task, now) != models.StateDue {
			continue
		}
		result.Due++

		if !s.claimDueInstance(task.ID, *task.ScheduledTime) {
			continue
		}

		s.dispatcher.Dispatch(ctx, effects.NotifyDue{Task: task})
		result.Notified = append(result.Notified, task.ID)

		s.logger.Info().
			Str("task_id", task.ID).
			Time("scheduled_time", *task.ScheduledTime).
			Msg("Task due, notification sent")
	}

	return result, nil
}

// Stats counts tasks by derived state at now
func (s *TaskService) Stats(ctx context.Context, now time.Time) (*TaskStats, error) {
	stats := &TaskStats{
		ByState: map[models.TaskState]int{
			models.StatePending:   0,
			models.StateScheduled: 0,
			models.StateDue:       0,
			models.StateCompleted: 0,
		},
		AsOf: now,
	}
	for task, err := range s.store.ListAll(ctx, database.ListOptions{}) {
		if err != nil {
			return nil, err
		}
		stats.Total++
		stats.ByState[s.StateOf(task, now)]++
		if task.HasSchedule() {
			stats.Scheduled++
		}
	}
	return stats, nil
}

// claimDueInstance records the instance as notified, reporting false if it already was
func (s *TaskService) claimDueInstance(id string, at time.Time) bool {
	s.notifiedMu.Lock()
	defer s.notifiedMu.Unlock()

	if prev, ok := s.notified[id]; ok && prev.Equal(at) {
		return false
	}
	s.notified[id] = at
	return true
}

// dismiss marks the instance as notified without sending anything
func (s *TaskService) dismiss(id string, at time.Time) {
	s.notifiedMu.Lock()
	defer s.notifiedMu.Unlock()
	s.notified[id] = at
	s.dismissed[id] = at
}

func (s *TaskService) forget(id string) {
	s.notifiedMu.Lock()
	defer s.notifiedMu.Unlock()
	delete(s.notified, id)
	delete(s.dismissed, id)
}

// StateOf derives the task's state at now. A dismissed due instance reads as
// pending, since no sweep will notify it.
func (s *TaskService) StateOf(task models.Task, now time.Time) models.TaskState {
	state := task.StateAt(now)
	if state != models.StateDue {
		return state
	}

	s.notifiedMu.Lock()
	at, ok := s.dismissed[task.ID]
	s.notifiedMu.Unlock()
	if ok && at.Equal(*task.ScheduledTime) {
		return models.StatePending
	}
	return state
}

// View attaches the state derived by StateOf
func (s *TaskService) View(task models.Task, now time.Time) TaskView {
	return TaskView{Task: task, State: s.StateOf(task, now)}
}

func sameSchedule(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
