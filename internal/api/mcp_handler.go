package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// MCPResponse represents a JSON-RPC 2.0 response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// MCPError represents a JSON-RPC 2.0 error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Standard JSON-RPC 2.0 error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
)

// HandleMCP godoc
// @Summary MCP over HTTP
// @Description Forwards one JSON-RPC 2.0 message to the MCP server and returns its reply
// @Tags mcp
// @Accept json
// @Produce json
// @Success 200 {object} MCPResponse
// @Success 202 "Notification accepted"
// @Router /api/v1/mcp [post]
func (s *Server) HandleMCP(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || !json.Valid(body) {
		data := "request body is not valid JSON"
		if err != nil {
			data = err.Error()
		}
		c.JSON(http.StatusOK, MCPResponse{
			JSONRPC: "2.0",
			Error: &MCPError{
				Code:    ParseError,
				Message: "Parse error",
				Data:    data,
			},
		})
		return
	}

	var envelope struct {
		JSONRPC string      `json:"jsonrpc"`
		ID      interface{} `json:"id"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.JSONRPC != "2.0" {
		c.JSON(http.StatusOK, MCPResponse{
			JSONRPC: "2.0",
			Error: &MCPError{
				Code:    InvalidRequest,
				Message: "Invalid Request",
				Data:    "jsonrpc must be 2.0",
			},
			ID: envelope.ID,
		})
		return
	}

	reply := s.mcpServer.MCPServer().HandleMessage(c.Request.Context(), body)
	if reply == nil {
		// Notifications have no reply
		c.Status(http.StatusAccepted)
		return
	}

	c.JSON(http.StatusOK, reply)
}
