package services

import (
	"time"

	"github.com/ksred/remind-me/internal/models"
)

// CreateTaskRequest represents a request to create a task
type CreateTaskRequest struct {
	Title         string     `json:"title" binding:"required"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
}

// UpdateRequest lists the task fields an edit may change. Nil fields are left alone.
type UpdateRequest struct {
	Title         *string    `json:"title,omitempty"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	ClearSchedule bool       `json:"clear_schedule,omitempty"`
}

// IsEmpty reports whether the request changes nothing
func (r UpdateRequest) IsEmpty() bool {
	return r.Title == nil && r.ScheduledTime == nil && !r.ClearSchedule
}

// ListRequest controls task listing
type ListRequest struct {
	// IncompleteFirst moves open tasks ahead of completed ones, keeping creation order within each group
	IncompleteFirst bool `json:"incomplete_first" form:"incomplete_first"`
	// NewestFirst lists by descending creation time
	NewestFirst bool `json:"newest_first" form:"newest_first"`
}

// SweepResult summarises one due-notification sweep
type SweepResult struct {
	// Skipped is set when another sweep was already running and this request was coalesced into it
	Skipped  bool     `json:"skipped"`
	Scanned  int      `json:"scanned"`
	// Due counts tasks in the due state, including those already notified
	Due      int      `json:"due"`
	Notified []string `json:"notified"`
}

// TaskStats counts tasks by derived state
type TaskStats struct {
	Total     int                      `json:"total"`
	ByState   map[models.TaskState]int `json:"by_state"`
	Scheduled int                      `json:"with_schedule"`
	AsOf      time.Time                `json:"as_of"`
}

// TaskView is a task together with its derived state
type TaskView struct {
	models.Task
	State models.TaskState `json:"state"`
}

// TaskResponse represents a standard response for task operations
type TaskResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Data    interface{}   `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
	Meta    *ResponseMeta `json:"meta,omitempty"`
}

// ResponseMeta contains metadata about the response
type ResponseMeta struct {
	Count int `json:"count,omitempty"`
}

// NewSuccessResponse creates a successful task response
func NewSuccessResponse(message string, data interface{}) *TaskResponse {
	return &TaskResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}
