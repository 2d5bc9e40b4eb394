package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/ksred/remind-me/internal/services"
	"github.com/ksred/remind-me/internal/utils"
)

const (
	ServerName    = "remind-me"
	ServerVersion = "1.0.0"

	// StatsResourceURI serves task counts by state
	StatsResourceURI = "tasks://stats"
)

// toolFunc is the shape of every Handler tool method
type toolFunc func(ctx context.Context, params json.RawMessage) (*ToolResponse, error)

// Server wraps the MCP server with the task tools
type Server struct {
	mcpServer *server.MCPServer
	handler   *Handler
	logger    zerolog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(taskService *services.TaskService, logger zerolog.Logger) (*Server, error) {
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
		server.WithLogging(),
	)

	logger = utils.ForComponent(logger, "mcp")

	s := &Server{
		mcpServer: mcpServer,
		handler:   NewHandler(taskService, logger),
		logger:    logger,
	}

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s, nil
}

// MCPServer exposes the underlying server, e.g. for the HTTP JSON-RPC bridge
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Serve runs the server over stdio until stdin closes
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Debug().Msg("Starting MCP server ServeStdio")
	err := server.ServeStdio(s.mcpServer)
	if err != nil {
		s.logger.Error().Err(err).Msg("MCP server ServeStdio error")
	}
	return err
}

func idSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func timeSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"format":      "date-time",
		"description": description,
	}
}

// registerTools registers MCP tools
func (s *Server) registerTools() {
	tools := []struct {
		tool mcp.Tool
		fn   toolFunc
	}{
		{
			tool: mcp.Tool{
				Name:        "create_task",
				Description: "Create a task. Use when the user asks to be reminded of something ('remind me to...', 'add a task...'). Pass scheduled_time to get a notification when it falls due.",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"title": map[string]interface{}{
							"type":        "string",
							"description": "What needs doing",
						},
						"scheduled_time": timeSchema("Optional reminder time (RFC 3339)"),
					},
					Required: []string{"title"},
				},
			},
			fn: s.handler.HandleCreateTask,
		},
		{
			tool: mcp.Tool{
				Name:        "update_task",
				Description: "Rename or reschedule a task. Rescheduling re-arms the due notification.",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"id": idSchema("ID of the task to update"),
						"title": map[string]interface{}{
							"type":        "string",
							"description": "New title",
						},
						"scheduled_time": timeSchema("New reminder time (RFC 3339)"),
						"clear_schedule": map[string]interface{}{
							"type":        "boolean",
							"description": "Remove the reminder time",
						},
					},
					Required: []string{"id"},
				},
			},
			fn: s.handler.HandleUpdateTask,
		},
		{
			tool: mcp.Tool{
				Name:        "complete_task",
				Description: "Mark a task as done",
				InputSchema: mcp.ToolInputSchema{
					Type:       "object",
					Properties: map[string]interface{}{"id": idSchema("ID of the task to complete")},
					Required:   []string{"id"},
				},
			},
			fn: s.handler.HandleCompleteTask,
		},
		{
			tool: mcp.Tool{
				Name:        "reopen_task",
				Description: "Mark a completed task as not done",
				InputSchema: mcp.ToolInputSchema{
					Type:       "object",
					Properties: map[string]interface{}{"id": idSchema("ID of the task to reopen")},
					Required:   []string{"id"},
				},
			},
			fn: s.handler.HandleReopenTask,
		},
		{
			tool: mcp.Tool{
				Name:        "delete_task",
				Description: "Delete a task by ID",
				InputSchema: mcp.ToolInputSchema{
					Type:       "object",
					Properties: map[string]interface{}{"id": idSchema("ID of the task to delete")},
					Required:   []string{"id"},
				},
			},
			fn: s.handler.HandleDeleteTask,
		},
		{
			tool: mcp.Tool{
				Name:        "list_tasks",
				Description: "List every task with its current state (pending, scheduled, due or completed). Use when the user asks what is on their list.",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"incomplete_first": map[string]interface{}{
							"type":        "boolean",
							"description": "List open tasks before completed ones",
						},
						"newest_first": map[string]interface{}{
							"type":        "boolean",
							"description": "List the most recently created tasks first",
						},
					},
				},
			},
			fn: s.handler.HandleListTasks,
		},
		{
			tool: mcp.Tool{
				Name:        "check_due",
				Description: "Send notifications for tasks whose reminder time has passed. Each due task is notified once.",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"now": timeSchema("Instant to check against (default: current time)"),
					},
				},
			},
			fn: s.handler.HandleCheckDue,
		},
	}

	for _, t := range tools {
		s.mcpServer.AddTool(t.tool, s.toolHandler(t.tool.Name, t.fn))
	}

	s.logger.Info().Int("count", len(tools)).Msg("Registered MCP tools")
}

// registerResources registers MCP resources
func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.Resource{
		URI:         StatsResourceURI,
		Name:        "Task Statistics",
		Description: "Task counts by state",
		MIMEType:    "application/json",
	}, s.createStatsHandler())

	s.logger.Info().Int("count", 1).Msg("Registered MCP resources")
}

// registerPrompts registers MCP prompts
func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.Prompt{
		Name:        "remind_me",
		Description: "Template for creating a reminder",
		Arguments: []mcp.PromptArgument{
			{
				Name:        "task",
				Description: "What to be reminded about",
				Required:    true,
			},
			{
				Name:        "when",
				Description: "When the reminder should fire",
				Required:    false,
			},
		},
	}, s.createRemindMeHandler())

	s.logger.Info().Int("count", 1).Msg("Registered MCP prompts")
}

// toolHandler adapts a Handler method to the MCP tool signature. Failures are
// reported as tool errors rather than protocol errors.
func (s *Server) toolHandler(name string, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonData, err := json.Marshal(request.GetArguments())
		if err != nil {
			return textResult(fmt.Sprintf("Failed to parse arguments: %v", err), true), nil
		}

		response, err := fn(ctx, jsonData)
		if err != nil {
			s.logger.Warn().Err(err).Str("tool", name).Msg("Tool call failed")
			response = NewErrorResponse(err.Error())
		}

		resultJSON, mErr := response.ToJSON()
		if mErr != nil {
			return textResult(fmt.Sprintf("Failed to marshal result: %v", mErr), true), nil
		}
		return textResult(string(resultJSON), err != nil), nil
	}
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
		IsError: isError,
	}
}

func (s *Server) createStatsHandler() server.ResourceHandlerFunc {
	return func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		statsJSON, err := s.handler.HandleStats(ctx)
		if err != nil {
			return nil, err
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "application/json",
				Text:     string(statsJSON),
			},
		}, nil
	}
}

func (s *Server) createRemindMeHandler() server.PromptHandlerFunc {
	return func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		task := request.Params.Arguments["task"]
		text := fmt.Sprintf("Create a task titled %q.", task)
		if when, ok := request.Params.Arguments["when"]; ok && when != "" {
			text = fmt.Sprintf("Create a task titled %q with a reminder at %s. Convert the time to RFC 3339 in the user's time zone.", task, when)
		}

		return &mcp.GetPromptResult{
			Messages: []mcp.PromptMessage{
				{
					Role: mcp.RoleUser,
					Content: mcp.TextContent{
						Type: "text",
						Text: text,
					},
				},
			},
		}, nil
	}
}
