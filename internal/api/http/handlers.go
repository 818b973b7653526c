package http

import (
	"context"
	"net/http"

	"github.com/GriffinCanCode/windowsync/backend/internal/domain/content"
	"github.com/GriffinCanCode/windowsync/backend/internal/domain/registry"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the root endpoint
const Version = "0.3.0"

// Executor runs a message through the router and waits for it
type Executor interface {
	Exec(ctx context.Context, sender types.WindowHandle, msg types.Message) error
}

// WindowLister lists tracked windows
type WindowLister interface {
	Windows() []types.WindowInfo
}

// Handlers serves the HTTP control API. Writes go through the router as
// messages from outside any window; reads use registry snapshots.
type Handlers struct {
	router   Executor
	registry *registry.Registry
	windows  WindowLister
	resolver content.Resolver
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewHandlers creates HTTP handlers
func NewHandlers(
	router Executor,
	reg *registry.Registry,
	windows WindowLister,
	resolver content.Resolver,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		router:   router,
		registry: reg,
		windows:  windows,
		resolver: resolver,
		metrics:  metrics,
		logger:   logger.Named("http"),
	}
}

// Register installs every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	// Sessions
	r.GET("/sessions", h.ListSessions)
	r.POST("/sessions", h.OpenSession)
	r.GET("/sessions/:id", h.GetSession)
	r.PUT("/sessions/:id/value", h.UpdateSession)
	r.DELETE("/sessions/:id", h.CloseSession)

	// Windows
	r.GET("/windows", h.ListWindows)
	r.POST("/windows", h.CreateWindow)
	r.DELETE("/windows/:id", h.CloseWindow)
	r.POST("/broadcast", h.Broadcast)
	r.GET("/pages", h.ListPages)

	// Renderer logs
	r.POST("/logs", h.StreamLogs)

	if h.metrics != nil {
		r.GET("/metrics/json", h.GetMetrics)
	}
}

// Root handles the root endpoint
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "windowsync",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	resp := gin.H{
		"status":   "healthy",
		"sessions": h.registry.Len(),
		"windows":  len(h.windows.Windows()),
		"dev_mode": h.resolver.DevMode(),
	}
	if h.metrics != nil {
		resp["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}

// exec runs msg through the router, answering 503 when the loop is gone
func (h *Handlers) exec(c *gin.Context, msg types.Message) bool {
	if err := h.router.Exec(c.Request.Context(), nil, msg); err != nil {
		h.logger.Warn("Router unavailable", zap.String("channel", string(msg.Channel())), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return false
	}
	return true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "Invalid request: " + err.Error(),
	})
}

func notFound(c *gin.Context, what, id string) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"error":   what + " not found: " + id,
	})
}
