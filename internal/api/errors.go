package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ksred/remind-me/internal/utils"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case utils.IsValidationError(err):
		return http.StatusBadRequest
	case utils.IsNotFoundError(err):
		return http.StatusNotFound
	case utils.IsConflictError(err),
		utils.IsAlreadyCompletedError(err),
		utils.IsNotCompletedError(err):
		return http.StatusConflict
	case errors.Is(err, utils.ErrSchemaNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Internal errors are logged
// with the request's logger and their details withheld.
func respondError(c *gin.Context, err error, action string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		utils.FromContext(c.Request.Context()).Error().Err(err).Str("action", action).Msg("Request failed")
		c.JSON(status, ErrorResponse{Error: "Failed to " + action})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
