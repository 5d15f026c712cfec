package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gitscribe/gitscribe/internal/github"
	"github.com/gitscribe/gitscribe/pkg/logging"

	"go.uber.org/zap"
)

// Error represents an API error with an HTTP status
type Error struct {
	Status  int
	Message string
}

// NewError creates a new API error
func NewError(status int, message string) *Error {
	return &Error{
		Status:  status,
		Message: message,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Message)
}

// respondError maps an error to a JSON error response. Validation and
// auth failures keep their message; everything else becomes a generic
// 500 so upstream details never leak to clients.
func respondError(c *gin.Context, err error) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Message})
		return
	}

	if errors.Is(err, github.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if errors.Is(err, github.ErrUnauthorized) || errors.Is(err, github.ErrNoToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	logging.GetLogger().Error("Request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
