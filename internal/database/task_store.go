package database

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/ksred/remind-me/internal/models"
	"github.com/ksred/remind-me/internal/utils"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// DefaultListBatchSize is the page size ListAll uses when none is configured
const DefaultListBatchSize = 100

// taskRecord is the row shape of the task table. Every column is nullable
// TEXT or INTEGER, written by more than one generation of client.
type taskRecord struct {
	ID        string         `gorm:"column:id;primaryKey"`
	Title     sql.NullString `gorm:"column:title"`
	Completed sql.NullInt64  `gorm:"column:completed"`
	Time      sql.NullString `gorm:"column:time"`
	Created   sql.NullString `gorm:"column:created_at"`
	Updated   sql.NullString `gorm:"column:updated_at"`
}

func (taskRecord) TableName() string {
	return "task"
}

func recordFromTask(t models.Task) taskRecord {
	rec := taskRecord{
		ID:      t.ID,
		Title:   sql.NullString{String: t.Title, Valid: true},
		Created: sql.NullString{String: models.FormatTimestamp(t.CreatedAt), Valid: true},
		Updated: sql.NullString{String: models.FormatTimestamp(t.UpdatedAt), Valid: true},
	}
	rec.Completed = sql.NullInt64{Int64: boolToInt(t.Completed), Valid: true}
	if t.ScheduledTime != nil {
		rec.Time = sql.NullString{String: models.FormatTimestamp(*t.ScheduledTime), Valid: true}
	}
	return rec
}

func (r taskRecord) toTask() (models.Task, error) {
	task := models.Task{
		ID:        r.ID,
		Title:     r.Title.String,
		Completed: r.Completed.Valid && r.Completed.Int64 != 0,
	}

	var err error
	if r.Created.Valid {
		if task.CreatedAt, err = models.ParseTimestamp(r.Created.String); err != nil {
			return models.Task{}, utils.WrapDatabaseError("decode task "+r.ID, err)
		}
	}
	task.UpdatedAt = task.CreatedAt
	if r.Updated.Valid {
		if task.UpdatedAt, err = models.ParseTimestamp(r.Updated.String); err != nil {
			return models.Task{}, utils.WrapDatabaseError("decode task "+r.ID, err)
		}
	}
	if r.Time.Valid && strings.TrimSpace(r.Time.String) != "" {
		scheduled, err := models.ParseScheduledTime(strings.TrimSpace(r.Time.String), task.CreatedAt)
		if err != nil {
			return models.Task{}, utils.WrapDatabaseError("decode task "+r.ID, err)
		}
		task.ScheduledTime = &scheduled
	}
	return task, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// ListOptions controls ListAll ordering and paging
type ListOptions struct {
	// Descending lists newest first
	Descending bool
	// BatchSize is the number of rows fetched per query; 0 uses the store default
	BatchSize int
}

// TaskStore persists tasks. It is pure persistence: no lifecycle rules and no side effects.
type TaskStore struct {
	db        *Database
	logger    zerolog.Logger
	now       func() time.Time
	batchSize int
}

// NewTaskStore creates a task store on top of db
func NewTaskStore(db *Database, logger zerolog.Logger) *TaskStore {
	return &TaskStore{
		db:        db,
		logger:    utils.ForComponent(logger, "task_store"),
		now:       func() time.Time { return time.Now().UTC() },
		batchSize: DefaultListBatchSize,
	}
}

// WithClock overrides the clock used for created_at and updated_at
func (s *TaskStore) WithClock(now func() time.Time) *TaskStore {
	s.now = now
	return s
}

// WithBatchSize overrides the default ListAll page size
func (s *TaskStore) WithBatchSize(n int) *TaskStore {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// Insert stores a new task. Zero timestamps are filled in from the clock.
func (s *TaskStore) Insert(ctx context.Context, task models.Task) (models.Task, error) {
	if task.ID == "" {
		return models.Task{}, utils.RequiredFieldError("id")
	}
	if strings.TrimSpace(task.Title) == "" {
		return models.Task{}, utils.RequiredFieldError("title")
	}

	now := s.now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() || task.UpdatedAt.Before(task.CreatedAt) {
		task.UpdatedAt = task.CreatedAt
	}

	rec := recordFromTask(task)

	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&taskRecord{}).Where("id = ?", task.ID).Count(&count).Error; err != nil {
			return utils.WrapDatabaseError("check task id", err)
		}
		if count > 0 {
			return utils.WrapDuplicateIDError("task", task.ID)
		}

		if err := tx.Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return utils.WrapDuplicateIDError("task", task.ID)
			}
			return utils.WrapDatabaseError("insert task", err)
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}

	s.logger.Debug().Str("task_id", task.ID).Msg("Task inserted")

	return rec.toTask()
}

// Get returns the task with the given id
func (s *TaskStore) Get(ctx context.Context, id string) (models.Task, error) {
	var task models.Task
	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		rec, err := findTask(tx, id)
		if err != nil {
			return err
		}
		task, err = rec.toTask()
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// Update applies patch to the task and refreshes updated_at. The read and the
// write happen in one transaction.
func (s *TaskStore) Update(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return models.Task{}, utils.InvalidFieldError("title", "cannot be empty")
	}

	var updated models.Task
	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		rec, err := findTask(tx, id)
		if err != nil {
			return err
		}
		current, err := rec.toTask()
		if err != nil {
			return err
		}

		updated = patch.Apply(current)
		updated.UpdatedAt = s.now().UTC()
		if updated.UpdatedAt.Before(updated.CreatedAt) {
			updated.UpdatedAt = updated.CreatedAt
		}

		next := recordFromTask(updated)
		fields := map[string]interface{}{
			"title":      next.Title,
			"completed":  next.Completed,
			"time":       next.Time,
			"updated_at": next.Updated,
		}
		if err := tx.Model(&taskRecord{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return utils.WrapDatabaseError("update task", err)
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}

	s.logger.Debug().Str("task_id", id).Msg("Task updated")

	return updated, nil
}

// Delete removes the task. Deleting a missing task is a NotFoundError.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&taskRecord{})
		if result.Error != nil {
			return utils.WrapDatabaseError("delete task", result.Error)
		}
		if result.RowsAffected == 0 {
			return utils.WrapNotFoundError("task", id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug().Str("task_id", id).Msg("Task deleted")
	return nil
}

// Count returns the number of stored tasks
func (s *TaskStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&taskRecord{}).Count(&count).Error; err != nil {
			return utils.WrapDatabaseError("count tasks", err)
		}
		return nil
	})
	return count, err
}

// ListAll yields every task ordered by created_at, then id. Rows are read one
// batch at a time and no cursor is held between batches, so the caller may
// write to the store while iterating. Iteration stops at the first error.
func (s *TaskStore) ListAll(ctx context.Context, opts ListOptions) iter.Seq2[models.Task, error] {
	size := opts.BatchSize
	if size <= 0 {
		size = s.batchSize
	}

	return func(yield func(models.Task, error) bool) {
		var after *taskRecord
		for {
			if err := ctx.Err(); err != nil {
				yield(models.Task{}, err)
				return
			}

			batch, err := s.fetchBatch(ctx, after, opts.Descending, size)
			if err != nil {
				yield(models.Task{}, err)
				return
			}

			for i := range batch {
				task, err := batch[i].toTask()
				if !yield(task, err) || err != nil {
					return
				}
			}

			if len(batch) < size {
				return
			}
			after = &batch[len(batch)-1]
		}
	}
}

// List collects ListAll into a slice
func (s *TaskStore) List(ctx context.Context, opts ListOptions) ([]models.Task, error) {
	tasks := []models.Task{}
	for task, err := range s.ListAll(ctx, opts) {
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// fetchBatch reads the page following after. SQLite sorts NULL created_at
// values first, so the keyset predicate handles them explicitly.
func (s *TaskStore) fetchBatch(ctx context.Context, after *taskRecord, descending bool, size int) ([]taskRecord, error) {
	var batch []taskRecord
	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		q := tx.Model(&taskRecord{})
		order := "created_at ASC, id ASC"
		if descending {
			order = "created_at DESC, id DESC"
		}

		if after != nil {
			switch {
			case !descending && !after.Created.Valid:
				q = q.Where("(created_at IS NULL AND id > ?) OR created_at IS NOT NULL", after.ID)
			case !descending:
				q = q.Where("created_at > ? OR (created_at = ? AND id > ?)",
					after.Created.String, after.Created.String, after.ID)
			case !after.Created.Valid:
				q = q.Where("created_at IS NULL AND id < ?", after.ID)
			default:
				q = q.Where("created_at < ? OR (created_at = ? AND id < ?) OR created_at IS NULL",
					after.Created.String, after.Created.String, after.ID)
			}
		}

		if err := q.Order(order).Limit(size).Find(&batch).Error; err != nil {
			return utils.WrapDatabaseError("list tasks", err)
		}
		return nil
	})
	return batch, err
}

func findTask(tx *gorm.DB, id string) (taskRecord, error) {
	var rec taskRecord
	if err := tx.Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return taskRecord{}, utils.WrapNotFoundError("task", id)
		}
		return taskRecord{}, utils.WrapDatabaseError("get task", err)
	}
	return rec, nil
}
