package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smartmailer/internal/model"
	"smartmailer/internal/templates"
)

// TestNotification sends a test alert through the notification channel.
func (h *Handlers) TestNotification(c *gin.Context) {
	if err := h.alerts.SendAlert(c.Request.Context(), templates.TestMessage()); err != nil {
		c.JSON(http.StatusBadGateway, model.ErrorResponse{
			Error:   "notification_error",
			Message: err.Error(),
			Code:    http.StatusBadGateway,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "test notification sent"})
}

// Cleanup deletes messages and records older than the given number of
// days (default 30).
func (h *Handlers) Cleanup(c *gin.Context) {
	days := 30
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{
				Error:   "invalid_days",
				Message: "days must be a positive integer",
				Code:    http.StatusBadRequest,
			})
			return
		}
		days = n
	}

	deleted, err := h.store.CleanupOlderThan(days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "database_error",
			Message: "Cleanup failed",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "days": days})
}
