package ws

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/windowsync/backend/internal/providers/wshost"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	pongWait      = 60 * time.Second
	maxFrameBytes = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Renderers load from file:// and dev servers
	},
}

// Dispatcher queues a decoded message for routing
type Dispatcher interface {
	Dispatch(sender types.WindowHandle, msg types.Message) error
}

// Config holds per-connection limits
type Config struct {
	InboundRPS   float64
	InboundBurst int
}

// Handler is the host side of the renderer bridge
type Handler struct {
	host       *wshost.Host
	dispatcher Dispatcher
	cfg        Config
	metrics    *monitoring.Metrics
	logger     *zap.Logger
	registered atomic.Bool
}

// NewHandler creates a bridge handler
func NewHandler(host *wshost.Host, dispatcher Dispatcher, cfg Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InboundRPS <= 0 {
		cfg.InboundRPS = 200
	}
	if cfg.InboundBurst <= 0 {
		cfg.InboundBurst = 400
	}
	return &Handler{
		host:       host,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger.Named("bridge"),
	}
}

// WithMetrics adds metrics tracking to the handler
func (h *Handler) WithMetrics(metrics *monitoring.Metrics) *Handler {
	h.metrics = metrics
	return h
}

// Register installs the bridge route. Only the first call has any effect;
// later calls return false.
func (h *Handler) Register(r gin.IRouter) bool {
	if !h.registered.CompareAndSwap(false, true) {
		h.logger.Warn("Bridge routes already registered")
		return false
	}
	r.GET(wshost.BridgePath+"/:window", h.HandleConnection)
	return true
}

// HandleConnection attaches a renderer to its window and pumps its frames
// into the router until the connection drops. A dropped connection closes
// the window.
func (h *Handler) HandleConnection(c *gin.Context) {
	windowID := c.Param("window")
	token := c.Query("token")

	if _, err := h.host.Verify(windowID, token); err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, wshost.ErrUnknownWindow) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("window", windowID), zap.Error(err))
		return
	}

	handle, err := h.host.Attach(windowID, token, conn)
	if err != nil {
		h.logger.Warn("Renderer attach rejected", zap.String("window", windowID), zap.Error(err))
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}
	defer handle.Close()

	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := c.Request.Context()
	limiter := rate.NewLimiter(rate.Limit(h.cfg.InboundRPS), h.cfg.InboundBurst)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("Bridge read error", zap.String("window", windowID), zap.Error(err))
			}
			return
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in")
		}

		if err := limiter.Wait(ctx); err != nil {
			return
		}

		msg, err := types.Decode(data)
		if err != nil {
			h.logger.Debug("Invalid bridge frame", zap.String("window", windowID), zap.Error(err))
			if h.metrics != nil {
				h.metrics.RecordDrop("invalid", "decode")
			}
			continue
		}

		if err := h.dispatcher.Dispatch(handle, msg); err != nil {
			h.logger.Warn("Dispatch failed", zap.String("window", windowID), zap.Error(err))
			return
		}
	}
}
