package mcp

import (
	"encoding/json"
	"time"
)

// TaskIDRequest is the argument of the single-task tools (complete, reopen, delete)
type TaskIDRequest struct {
	ID string `json:"id"`
}

// CreateTaskRequest represents the create_task tool arguments
type CreateTaskRequest struct {
	Title         string     `json:"title"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
}

// UpdateTaskRequest represents the update_task tool arguments
type UpdateTaskRequest struct {
	ID            string     `json:"id"`
	Title         *string    `json:"title,omitempty"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	ClearSchedule bool       `json:"clear_schedule,omitempty"`
}

// ListTasksRequest represents the list_tasks tool arguments
type ListTasksRequest struct {
	IncompleteFirst bool `json:"incomplete_first,omitempty"`
	NewestFirst     bool `json:"newest_first,omitempty"`
}

// CheckDueRequest represents the check_due tool arguments. A missing Now means the server clock.
type CheckDueRequest struct {
	Now *time.Time `json:"now,omitempty"`
}

// ToolResponse is the JSON body of every tool result
type ToolResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// NewSuccessResponse creates a successful tool response
func NewSuccessResponse(message string, data interface{}) *ToolResponse {
	return &ToolResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse creates an error tool response
func NewErrorResponse(err string) *ToolResponse {
	return &ToolResponse{
		Success: false,
		Error:   err,
	}
}

// WithCount attaches a result count
func (r *ToolResponse) WithCount(n int) *ToolResponse {
	r.Count = &n
	return r
}

// ToJSON converts the response to JSON
func (r *ToolResponse) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
