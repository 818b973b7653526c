package wshost

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/id"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"go.uber.org/zap"
)

var (
	ErrUnknownWindow   = errors.New("unknown window")
	ErrBadToken        = errors.New("bad bridge token")
	ErrAlreadyAttached = errors.New("renderer already attached")
	ErrQueueFull       = errors.New("outbound queue full")
)

// BridgePath is the route prefix renderers attach on
const BridgePath = "/bridge"

// Config holds provider settings
type Config struct {
	// PublicURL is the ws:// or http(s):// base renderers dial
	PublicURL string
	// QueueSize bounds frames buffered per window
	QueueSize int
}

// Host creates bridge-backed window handles and matches attaching
// renderers to them
type Host struct {
	cfg      Config
	launcher Launcher
	metrics  *monitoring.Metrics
	logger   *zap.Logger

	mu      sync.RWMutex
	handles map[string]*Handle // Protected by mu
}

// New creates a provider
func New(cfg Config, launcher Launcher, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if launcher == nil {
		launcher = NewLogLauncher(logger)
	}
	return &Host{
		cfg:      cfg,
		launcher: launcher,
		logger:   logger.Named("wshost"),
		handles:  make(map[string]*Handle),
	}
}

// WithMetrics adds metrics tracking to the provider
func (h *Host) WithMetrics(metrics *monitoring.Metrics) *Host {
	h.metrics = metrics
	return h
}

// Create mints a handle. Nothing is launched until LoadContent.
func (h *Host) Create(cfg types.WindowConfig) (types.WindowHandle, error) {
	windowID := id.NewWindowID()
	if cfg.Primary {
		windowID = id.NewPrimaryID()
	}

	handle := &Handle{
		id:       windowID.String(),
		token:    id.NewToken().String(),
		primary:  cfg.Primary,
		host:     h,
		queue:    make(chan []byte, h.cfg.QueueSize),
		attached: make(chan struct{}),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	h.handles[handle.id] = handle
	h.mu.Unlock()

	h.logger.Debug("Window handle created",
		zap.String("window", handle.id),
		zap.String("session", cfg.ID),
		zap.Bool("primary", cfg.Primary),
	)
	return handle, nil
}

// Verify checks that windowID is live and token matches it
func (h *Host) Verify(windowID, token string) (*Handle, error) {
	handle, ok := h.Lookup(windowID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWindow, windowID)
	}
	if subtle.ConstantTimeCompare([]byte(handle.token), []byte(token)) != 1 {
		return nil, ErrBadToken
	}
	return handle, nil
}

// Attach binds a renderer connection to its window after checking the token
func (h *Host) Attach(windowID, token string, conn Conn) (*Handle, error) {
	handle, err := h.Verify(windowID, token)
	if err != nil {
		return nil, err
	}
	if err := handle.attach(conn); err != nil {
		return nil, err
	}

	h.logger.Info("Renderer attached", zap.String("window", windowID))
	return handle, nil
}

// Lookup finds a live handle by id
func (h *Host) Lookup(windowID string) (*Handle, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	handle, ok := h.handles[windowID]
	return handle, ok
}

// Len returns the number of live handles
func (h *Host) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handles)
}

// Close closes every live handle
func (h *Host) Close() {
	h.mu.RLock()
	handles := make([]*Handle, 0, len(h.handles))
	for _, handle := range h.handles {
		handles = append(handles, handle)
	}
	h.mu.RUnlock()

	for _, handle := range handles {
		_ = handle.Close()
	}
}

func (h *Host) forget(handle *Handle) {
	h.mu.Lock()
	if h.handles[handle.id] == handle {
		delete(h.handles, handle.id)
	}
	h.mu.Unlock()
}

func (h *Host) bridgeURL(windowID, token string) string {
	base := strings.TrimRight(h.cfg.PublicURL, "/")
	switch {
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	}
	return base + BridgePath + "/" + url.PathEscape(windowID) + "?token=" + url.QueryEscape(token)
}
