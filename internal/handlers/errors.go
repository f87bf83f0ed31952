package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Abdallah-Labiba/Azure-POC/internal/document"
	"github.com/Abdallah-Labiba/Azure-POC/internal/todo"
	"github.com/Abdallah-Labiba/Azure-POC/shared/logger"
	"github.com/Abdallah-Labiba/Azure-POC/shared/messaging"
)

// statusFor maps domain and broker errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, todo.ErrValidation),
		errors.Is(err, document.ErrValidation),
		errors.Is(err, messaging.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, todo.ErrNotFound), errors.Is(err, document.ErrNotFound):
		return http.StatusNotFound
	case messaging.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, message string, err error) {
	status := statusFor(err)
	log := logger.GetLoggerFromGin(c)
	if status >= http.StatusInternalServerError {
		log.Error(message, logger.Err(err), logger.Int("status", status))
	} else {
		log.Warn(message, logger.Err(err), logger.Int("status", status))
	}

	_ = c.Error(err)
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func respondBindError(c *gin.Context, err error) {
	logger.GetLoggerFromGin(c).Warn("Invalid request body", logger.Err(err))
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}

// respondNotificationError reports a mutation that was committed but whose
// change notification could not be sent.
func respondNotificationError(c *gin.Context, err error) {
	logger.GetLoggerFromGin(c).Error("Change committed but notification failed", logger.Err(err))
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "Change saved but notification could not be published",
		"details": err.Error(),
	})
}
