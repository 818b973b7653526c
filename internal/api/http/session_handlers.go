package http

import (
	"net/http"

	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
)

// ListSessions lists registered sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.registry.List()
	views := make([]types.SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, s.View())
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": views,
		"count":    len(views),
	})
}

// GetSession returns one session
func (h *Handlers) GetSession(c *gin.Context) {
	id := c.Param("id")

	s, ok := h.registry.Get(id)
	if !ok {
		notFound(c, "session", id)
		return
	}
	c.JSON(http.StatusOK, s.View())
}

// OpenSession opens a session window, or focuses it and sets its value
// when it is already open
func (h *Handlers) OpenSession(c *gin.Context) {
	var req types.OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if !h.exec(c, types.OpenOrFocus{ID: req.ID, Value: req.Value}) {
		return
	}

	s, ok := h.registry.Get(req.ID)
	if !ok {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   "window could not be created",
		})
		return
	}
	c.JSON(http.StatusOK, s.View())
}

// UpdateSession sets a session's value and forwards it to its windows
func (h *Handlers) UpdateSession(c *gin.Context) {
	id := c.Param("id")

	var req types.ValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, ok := h.registry.Get(id); !ok {
		notFound(c, "session", id)
		return
	}

	if !h.exec(c, types.UpdateValue{ID: id, Value: req.Value}) {
		return
	}

	s, ok := h.registry.Get(id)
	if !ok {
		// Closed in the meantime
		notFound(c, "session", id)
		return
	}
	c.JSON(http.StatusOK, s.View())
}

// CloseSession closes a session's window. The registry entry goes away
// when the window reports the close.
func (h *Handlers) CloseSession(c *gin.Context) {
	id := c.Param("id")

	if _, ok := h.registry.Get(id); !ok {
		notFound(c, "session", id)
		return
	}
	if !h.exec(c, types.Close{ID: id}) {
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"id":      id,
	})
}
