package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smartmailer/internal/model"
	"smartmailer/internal/store"
)

// GetRecords returns processing records, newest first. Supports
// status, category, since, until and limit query parameters.
func (h *Handlers) GetRecords(c *gin.Context) {
	filter := store.QueryFilter{
		Status:   model.Status(c.Query("status")),
		Category: model.Category(c.Query("category")),
	}

	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{
				Error:   "invalid_since",
				Message: "since must be RFC3339",
				Code:    http.StatusBadRequest,
			})
			return
		}
		filter.Since = t
	}
	if v := c.Query("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{
				Error:   "invalid_until",
				Message: "until must be RFC3339",
				Code:    http.StatusBadRequest,
			})
			return
		}
		filter.Until = t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a positive integer",
				Code:    http.StatusBadRequest,
			})
			return
		}
		filter.Limit = n
	}

	records, err := h.store.Query(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch records",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetRecord returns a single processing record by message id.
func (h *Handlers) GetRecord(c *gin.Context) {
	messageID := c.Param("message_id")

	rec, err := h.store.GetRecord(messageID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, model.ErrorResponse{
				Error:   "not_found",
				Message: "Record not found",
				Code:    http.StatusNotFound,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch record",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	response := model.RecordResponse{
		MessageID:   rec.MessageID,
		Category:    rec.Category,
		MatchedRule: rec.MatchedRule,
		Status:      rec.Status,
		ActionTaken: rec.ActionTaken,
		Attempts:    rec.Attempts,
		LastError:   rec.LastError,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	if msg, err := h.store.GetMessage(messageID); err == nil {
		response.Sender = msg.Sender
		response.Subject = msg.Subject
		response.ReceivedAt = msg.ReceivedAt
	}

	c.JSON(http.StatusOK, response)
}

// GetStats returns aggregate processing statistics.
func (h *Handlers) GetStats(c *gin.Context) {
	stats, err := h.store.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to compute statistics",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}
