package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/widgetkit/internal/domain/widget"
	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

const maxLogBatch = 500

// ClientLogEntry is one guest log line produced by a widget running in a
// browser host
type ClientLogEntry struct {
	Widget    string        `json:"widget"`
	Level     string        `json:"level"`
	Content   []interface{} `json:"content"`
	Timestamp int64         `json:"timestamp"`
}

// ClientLogRequest is a batch of browser-side guest logs
type ClientLogRequest struct {
	Source  string           `json:"source" binding:"required"`
	Entries []ClientLogEntry `json:"entries" binding:"required,min=1"`
}

// IngestLogs forwards guest logs from browser hosts into the server log,
// so widgets behave the same in both places.
func (h *Handlers) IngestLogs(c *gin.Context) {
	var req ClientLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log request: " + err.Error()})
		return
	}
	if len(req.Entries) > maxLogBatch {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too many log entries"})
		return
	}

	logger := h.logger.Named("client")
	processed := 0
	for _, entry := range req.Entries {
		level := types.LogLevel(entry.Level)
		if !level.Valid() {
			logger.Warn("Dropping client log with unknown level",
				zap.String("source", req.Source),
				zap.String("level", entry.Level),
			)
			continue
		}
		tag, text := widget.FormatLog(entry.Content)
		logger.Guest(level, text,
			zap.String("source", req.Source),
			zap.String("widget", entry.Widget),
			zap.String("tag", tag),
			zap.Int64("client_timestamp", entry.Timestamp),
		)
		processed++
	}

	c.JSON(http.StatusOK, gin.H{
		"entries_received":  len(req.Entries),
		"entries_processed": processed,
	})
}
