package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxLogEntries = 500

var errEmptyMessage = errors.New("empty log message")

// RendererLogEntry is one log line from a renderer
type RendererLogEntry struct {
	ID        string         `json:"id"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context"`
	Timestamp string         `json:"timestamp"`
}

// RendererLogRequest is a batch of logs from one window
type RendererLogRequest struct {
	WindowID  string             `json:"windowId"`
	Entries   []RendererLogEntry `json:"entries"`
	Timestamp int64              `json:"timestamp"`
}

// StreamLogs writes renderer log batches into the host log
func (h *Handlers) StreamLogs(c *gin.Context) {
	var req RendererLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log request format"})
		return
	}

	if len(req.Entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No log entries provided"})
		return
	}
	if len(req.Entries) > maxLogEntries {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Too many log entries"})
		return
	}

	logger := h.logger.Named("renderer").With(zap.String("window", req.WindowID))
	processed := 0
	for _, entry := range req.Entries {
		if err := logEntry(logger, entry); err != nil {
			logger.Debug("Skipped renderer log entry", zap.String("ui_log_id", entry.ID), zap.Error(err))
			continue
		}
		processed++
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"entries_received":  len(req.Entries),
		"entries_processed": processed,
		"timestamp":         time.Now().Unix(),
	})
}

func logEntry(logger *zap.Logger, entry RendererLogEntry) error {
	if entry.Message == "" {
		return errEmptyMessage
	}

	fields := make([]zap.Field, 0, len(entry.Context)+2)
	fields = append(fields,
		zap.String("ui_log_id", entry.ID),
		zap.String("ui_timestamp", entry.Timestamp),
	)
	for key, value := range entry.Context {
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, v))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	switch entry.Level {
	case "error":
		logger.Error(entry.Message, fields...)
	case "warn":
		logger.Warn(entry.Message, fields...)
	case "debug", "verbose":
		logger.Debug(entry.Message, fields...)
	default:
		logger.Info(entry.Message, fields...)
	}
	return nil
}
