package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ksred/remind-me/internal/services"
	"github.com/ksred/remind-me/internal/utils"
)

// Handler implements the task tools on top of the task service
type Handler struct {
	taskService *services.TaskService
	logger      zerolog.Logger
}

// NewHandler creates a new MCP handler
func NewHandler(taskService *services.TaskService, logger zerolog.Logger) *Handler {
	return &Handler{
		taskService: taskService,
		logger:      logger,
	}
}

// decode parses tool arguments into req. Empty arguments decode to the zero value.
func decode(params json.RawMessage, req interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, req); err != nil {
		return utils.WrapValidationError("", fmt.Sprintf("invalid request format: %v", err))
	}
	return nil
}

func decodeID(params json.RawMessage) (string, error) {
	var req TaskIDRequest
	if err := decode(params, &req); err != nil {
		return "", err
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return "", utils.RequiredFieldError("id")
	}
	return id, nil
}

// HandleCreateTask handles the create_task tool call
func (h *Handler) HandleCreateTask(ctx context.Context, params json.RawMessage) (*ToolResponse, error) {
	h.logger.Debug().RawJSON("params", params).Msg("create_task called")

	var req CreateTaskRequest
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	task, err := h.taskService.CreateTask(ctx, req.Title, req.ScheduledTime)
	if err != nil {
		return nil, err
	}
	return NewSuccessResponse("Task created", h.taskService.View(task, h.taskService.Now())), nil
}

// HandleUpdateTask handles the update_task tool call
func (h *Handler) HandleUpdateTask(ctx context.Context, params json.RawMessage) (*ToolResponse, error) {
	h.logger.Debug().RawJSON("params", params).Msg("update_task called")

	var req UpdateTaskRequest
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ID) == "" {
		return nil, utils.RequiredFieldError("id")
	}

	task, err := h.taskService.UpdateTask(ctx, req.ID, services.UpdateRequest{
		Title:         req.Title,
		ScheduledTime: req.ScheduledTime,
		ClearSchedule: req.ClearSchedule,
	})
	if err != nil {
		return nil, err
	}
	return NewSuccessResponse("Task updated", h.taskService.View(task, h.taskService.Now())), nil
}

// HandleCompleteTask handles the complete_task tool call
func (h *Handler) HandleCompleteTask(ctx context.Context, params json.RawMessage) (*ToolResponse, error) {
	id, err := decodeID(params)
	if err != nil {
		return nil, err
	}

	task, err := h.taskService.CompleteTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewSuccessResponse("Task completed", h.taskService.View(task, h.taskService.Now())), nil
}

// HandleReopenTask handles the reopen_task tool call
func (h *Handler) HandleReopenTask(ctx context.Context, params json.RawMessage) (*ToolResponse, error) {
	id, err := decodeID(params)
	if err != nil {
		return nil, err
	}

	task, err := h.taskService.ReopenTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewSuccessResponse("Task reopened", h.taskService.View(task, h.taskService.Now())), nil
}

// HandleDeleteTask handles the delete_task tool call
func (h *Handler) HandleDeleteTask(ctx context.Context, params json.RawMessage) (*ToolResponse, error) {
	id, err := decodeID(params)
	if err != nil {
		return nil, err
	}

	if err := h.taskService.DeleteTask(ctx, id); err != nil {
		return nil, err
	}
	return NewSuccessResponse(fmt.Sprintf("Task %s deleted", id), nil), nil
}

// HandleListTasks handles the list_tasks tool call
func (h *Handler) HandleListTasks(ctx context.Context, params json.RawMessage) (*ToolResponse, error) {
	var req ListTasksRequest
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	tasks, err := h.taskService.ListTasks(ctx, services.ListRequest{
		IncompleteFirst: req.IncompleteFirst,
		NewestFirst:     req.NewestFirst,
	})
	if err != nil {
		return nil, err
	}

	now := h.taskService.Now()
	views := make([]services.TaskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, h.taskService.View(task, now))
	}
	return NewSuccessResponse("", views).WithCount(len(views)), nil
}

// HandleCheckDue handles the check_due tool call
func (h *Handler) HandleCheckDue(ctx context.Context, params json.RawMessage) (*ToolResponse, error) {
	var req CheckDueRequest
	if err := decode(params, &req); err != nil {
		return nil, err
	}

	now := h.taskService.Now()
	if req.Now != nil {
		now = req.Now.UTC()
	}

	result, err := h.taskService.CheckDue(ctx, now)
	if err != nil {
		return nil, err
	}
	return NewSuccessResponse("", result).WithCount(len(result.Notified)), nil
}

// HandleStats returns task counts by state
func (h *Handler) HandleStats(ctx context.Context) ([]byte, error) {
	stats, err := h.taskService.Stats(ctx, h.taskService.Now())
	if err != nil {
		return nil, err
	}
	return json.Marshal(stats)
}
