package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ksred/remind-me/internal/mcp"
	"github.com/ksred/remind-me/internal/models"
	"github.com/ksred/remind-me/internal/services"
)

func (s *Server) taskResponse(message string, task models.Task) *services.TaskResponse {
	return services.NewSuccessResponse(message, s.taskService.View(task, s.taskService.Now()))
}

// createTaskHandler godoc
// @Summary Create a task
// @Description Create a task, optionally with a reminder time
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body services.CreateTaskRequest true "Task to create"
// @Success 201 {object} services.TaskResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/tasks [post]
func (s *Server) createTaskHandler(c *gin.Context) {
	var req services.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	task, err := s.taskService.CreateTask(c.Request.Context(), req.Title, req.ScheduledTime)
	if err != nil {
		respondError(c, err, "create task")
		return
	}

	c.JSON(http.StatusCreated, s.taskResponse("Task created", task))
}

// listTasksHandler godoc
// @Summary List tasks
// @Description List every task with its derived state, oldest first by default
// @Tags tasks
// @Produce json
// @Param incomplete_first query bool false "List open tasks before completed ones"
// @Param newest_first query bool false "List by descending creation time"
// @Success 200 {object} services.TaskResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/tasks [get]
func (s *Server) listTasksHandler(c *gin.Context) {
	var req services.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	tasks, err := s.taskService.ListTasks(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "list tasks")
		return
	}

	now := s.taskService.Now()
	views := make([]services.TaskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, s.taskService.View(task, now))
	}

	response := services.NewSuccessResponse("", views)
	response.Meta = &services.ResponseMeta{Count: len(views)}
	c.JSON(http.StatusOK, response)
}

// getTaskHandler godoc
// @Summary Get a task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} services.TaskResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/tasks/{id} [get]
func (s *Server) getTaskHandler(c *gin.Context) {
	task, err := s.taskService.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "get task")
		return
	}

	c.JSON(http.StatusOK, s.taskResponse("", task))
}

// updateTaskHandler godoc
// @Summary Update a task
// @Description Rename or reschedule a task. Rescheduling re-arms the due notification.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body services.UpdateRequest true "Fields to change"
// @Success 200 {object} services.TaskResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/tasks/{id} [patch]
func (s *Server) updateTaskHandler(c *gin.Context) {
	var req services.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	task, err := s.taskService.UpdateTask(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err, "update task")
		return
	}

	c.JSON(http.StatusOK, s.taskResponse("Task updated", task))
}

// deleteTaskHandler godoc
// @Summary Delete a task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} services.TaskResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/tasks/{id} [delete]
func (s *Server) deleteTaskHandler(c *gin.Context) {
	if err := s.taskService.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "delete task")
		return
	}

	c.JSON(http.StatusOK, services.NewSuccessResponse("Task deleted", nil))
}

// completeTaskHandler godoc
// @Summary Complete a task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} services.TaskResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/tasks/{id}/complete [post]
func (s *Server) completeTaskHandler(c *gin.Context) {
	task, err := s.taskService.CompleteTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "complete task")
		return
	}

	c.JSON(http.StatusOK, s.taskResponse("Task completed", task))
}

// reopenTaskHandler godoc
// @Summary Reopen a completed task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} services.TaskResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/tasks/{id}/reopen [post]
func (s *Server) reopenTaskHandler(c *gin.Context) {
	task, err := s.taskService.ReopenTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "reopen task")
		return
	}

	c.JSON(http.StatusOK, s.taskResponse("Task reopened", task))
}

// checkDueHandler godoc
// @Summary Run a due sweep
// @Description Notify every task whose reminder time has passed and has not been notified yet
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body mcp.CheckDueRequest false "Instant to check against (default: now)"
// @Success 200 {object} services.TaskResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/tasks/check-due [post]
func (s *Server) checkDueHandler(c *gin.Context) {
	var req mcp.CheckDueRequest
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		// A chunked body has no length up front; an empty one decodes to io.EOF
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}

	now := s.taskService.Now()
	if req.Now != nil {
		now = req.Now.UTC()
	}

	result, err := s.taskService.CheckDue(c.Request.Context(), now)
	if err != nil {
		respondError(c, err, "check due tasks")
		return
	}

	c.JSON(http.StatusOK, services.NewSuccessResponse("", result))
}

// taskStatsHandler godoc
// @Summary Task statistics
// @Description Count tasks by derived state
// @Tags tasks
// @Produce json
// @Success 200 {object} services.TaskStats
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/tasks/stats [get]
func (s *Server) taskStatsHandler(c *gin.Context) {
	stats, err := s.taskService.Stats(c.Request.Context(), s.taskService.Now())
	if err != nil {
		respondError(c, err, "get task stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// schemaHandler godoc
// @Summary Schema version
// @Description Current schema version and the applied migration steps
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/schema [get]
func (s *Server) schemaHandler(c *gin.Context) {
	history, err := s.db.SchemaHistory(c.Request.Context())
	if err != nil {
		respondError(c, err, "read schema history")
		return
	}

	version := 0
	if len(history) > 0 {
		version = history[len(history)-1].Version
	}

	c.JSON(http.StatusOK, gin.H{
		"version":    version,
		"migrations": history,
	})
}
