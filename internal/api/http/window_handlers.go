package http

import (
	"net/http"

	"github.com/GriffinCanCode/windowsync/backend/internal/domain/content"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/id"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ListWindows lists tracked windows and their lifecycle state
func (h *Handlers) ListWindows(c *gin.Context) {
	windows := h.windows.Windows()
	c.JSON(http.StatusOK, gin.H{
		"windows": windows,
		"count":   len(windows),
	})
}

// CreateWindow opens a window from a full configuration. An empty id is
// filled in here so the caller learns it.
func (h *Handlers) CreateWindow(c *gin.Context) {
	var cfg types.WindowConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, err)
		return
	}
	if cfg.ID == "" {
		cfg.ID = id.NewSessionID().String()
	}

	if !h.exec(c, types.CreateWindow{WindowConfig: cfg}) {
		return
	}

	s, ok := h.registry.Get(cfg.ID)
	if !ok {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   "window could not be created",
		})
		return
	}
	c.JSON(http.StatusAccepted, s.View())
}

// CloseWindow closes a window by session id or window label
func (h *Handlers) CloseWindow(c *gin.Context) {
	target := c.Param("id")
	if !h.exec(c, types.CloseWindow{ID: target}) {
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"id":      target,
	})
}

// Broadcast publishes an event-bus message from the host. Without a
// target every live window receives it.
func (h *Handlers) Broadcast(c *gin.Context) {
	var req types.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var payload []byte
	if req.Payload != nil {
		raw, err := sonic.Marshal(req.Payload)
		if err != nil {
			badRequest(c, err)
			return
		}
		payload = raw
	}

	if !h.exec(c, types.Envelope{Topic: req.Channel, Payload: payload, TargetID: req.TargetID}) {
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"channel": req.Channel,
	})
}

// ListPages lists the packaged pages a window can open. In dev mode pages
// come from the dev server and are not enumerated.
func (h *Handlers) ListPages(c *gin.Context) {
	if h.resolver.DevMode() {
		c.JSON(http.StatusOK, gin.H{
			"dev_mode": true,
			"pages":    []string{},
		})
		return
	}

	pages, err := content.ListPages(h.resolver.Dist())
	if err != nil {
		h.logger.Error("Failed to list pages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if pages == nil {
		pages = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"dev_mode": false,
		"dist":     h.resolver.Dist(),
		"pages":    pages,
	})
}
