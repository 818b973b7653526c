package router

import (
	"context"
	"time"

	"github.com/GriffinCanCode/windowsync/backend/internal/domain/registry"
	"github.com/GriffinCanCode/windowsync/backend/internal/domain/window"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/loop"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"go.uber.org/zap"
)

// HostLabel is the source of event-bus messages that did not come from a window
const HostLabel = "host"

// Drop reasons
const (
	dropUnknownSession = "unknown-session"
	dropUnknownTarget  = "unknown-target"
	dropNoOpener       = "no-opener"
	dropSendFailed     = "send-failed"
	dropCreateFailed   = "create-failed"
	dropNoSender       = "no-sender"
)

// Router turns inbound messages into registry updates and outbound sends.
// Handle runs on the event loop; Dispatch and Exec get it there.
type Router struct {
	loop     *loop.Loop
	registry *registry.Registry
	windows  *window.Manager
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	logger   *zap.Logger
}

// New creates a message router
func New(lp *loop.Loop, reg *registry.Registry, windows *window.Manager, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		loop:     lp,
		registry: reg,
		windows:  windows,
		logger:   logger.Named("router"),
	}
}

// WithMetrics adds metrics tracking to the router
func (r *Router) WithMetrics(metrics *monitoring.Metrics) *Router {
	r.metrics = metrics
	return r
}

// WithTracer records a span per handled message
func (r *Router) WithTracer(tracer *tracing.Tracer) *Router {
	r.tracer = tracer
	return r
}

// Dispatch queues msg from sender for handling on the loop.
// It fails only when the loop has stopped.
func (r *Router) Dispatch(sender types.WindowHandle, msg types.Message) error {
	return r.loop.Post(func() { r.Handle(context.Background(), sender, msg) })
}

// Exec handles msg on the loop and waits for it. A nil sender means the
// message came from outside any window.
func (r *Router) Exec(ctx context.Context, sender types.WindowHandle, msg types.Message) error {
	return r.loop.Call(ctx, func() { r.Handle(ctx, sender, msg) })
}

// Handle routes one message. It must run on the event loop.
func (r *Router) Handle(ctx context.Context, sender types.WindowHandle, msg types.Message) {
	start := time.Now()
	channel := string(msg.Channel())

	var senderID string
	if sender != nil {
		senderID = sender.ID()
	}
	span, ctx := r.tracer.StartDispatch(ctx, channel, senderID)

	switch m := msg.(type) {
	case types.OpenOrFocus:
		r.openOrFocus(ctx, sender, m)
	case types.UpdateValue:
		r.updateValue(sender, m)
	case types.RequestCurrentValue:
		r.requestCurrentValue(sender)
	case types.Close:
		r.close(m)
	case types.NotifyEditingState:
		r.notifyEditingState(sender, m)
	case types.EditingRequest:
		r.forwardEditing(sender, m)
	case types.Envelope:
		r.stream(sender, m)
	case types.CreateWindow:
		r.createWindow(ctx, sender, m)
	case types.CloseWindow:
		r.closeWindow(sender, m)
	default:
		r.drop(channel, "unhandled", zap.String("type", channel))
	}

	elapsed := time.Since(start)
	if r.metrics != nil {
		r.metrics.RecordMessage(channel, elapsed)
	}
	r.tracer.End(span, nil)
}

func (r *Router) openOrFocus(ctx context.Context, sender types.WindowHandle, m types.OpenOrFocus) {
	if s, ok := r.registry.Get(m.ID); ok {
		r.windows.Focus(m.ID)
		r.registry.SetValue(m.ID, m.Value)
		r.send(s.Window, types.ChannelUpdateValue, types.UpdateValue{ID: m.ID, Value: m.Value})
		return
	}

	r.create(ctx, sender, types.WindowConfig{ID: m.ID, Value: m.Value})
}

func (r *Router) createWindow(ctx context.Context, sender types.WindowHandle, m types.CreateWindow) {
	cfg := m.WindowConfig
	if cfg.ID != "" {
		if _, ok := r.registry.Get(cfg.ID); ok {
			r.windows.Focus(cfg.ID)
			if cfg.InitialData != nil && r.registry.SetInitialData(cfg.ID, cfg.InitialData) {
				r.windows.SendInit(cfg.ID)
			}
			return
		}
	}

	r.create(ctx, sender, cfg)
}

// create opens a session window. The opener is told right away when no
// window could be created, so it does not wait for one.
func (r *Router) create(ctx context.Context, sender types.WindowHandle, cfg types.WindowConfig) {
	opener := r.openerFor(sender)

	s, _, err := r.windows.Create(ctx, cfg, opener)
	if err != nil {
		r.drop(string(types.ChannelWindowCreate), dropCreateFailed,
			zap.String("session", cfg.ID), zap.Error(err))
		if cfg.ID != "" && opener != nil {
			r.send(opener, types.ChannelEditWindowClosed, types.WindowClosedEvent{ID: cfg.ID})
		}
		return
	}

	r.logger.Debug("Session created", zap.String("session", s.ID))
}

func (r *Router) updateValue(sender types.WindowHandle, m types.UpdateValue) {
	if !r.registry.SetValue(m.ID, m.Value) {
		r.drop(string(m.Channel()), dropUnknownSession, zap.String("session", m.ID))
		return
	}

	s, _ := r.registry.Get(m.ID)
	r.forwardToOthers(s, sender, types.ChannelUpdateValue, types.UpdateValue{ID: m.ID, Value: m.Value})
}

func (r *Router) requestCurrentValue(sender types.WindowHandle) {
	channel := string(types.ChannelRequestCurrentValue)
	if sender == nil {
		r.drop(channel, dropNoSender)
		return
	}

	sid, ok := r.registry.FindIDByHandle(sender)
	if !ok {
		// Not registered yet; the init-value on ready covers it.
		r.drop(channel, dropUnknownSession, zap.String("handle", sender.ID()))
		return
	}

	s, _ := r.registry.Get(sid)
	r.send(sender, types.ChannelInitValue, types.InitValue{
		ID:    s.ID,
		Value: s.Value,
		Route: s.Route,
		Data:  s.InitialData,
	})
}

func (r *Router) close(m types.Close) {
	if !r.windows.Close(m.ID) {
		r.drop(string(m.Channel()), dropUnknownSession, zap.String("session", m.ID))
	}
}

func (r *Router) notifyEditingState(sender types.WindowHandle, m types.NotifyEditingState) {
	state := types.EditingState{ID: m.ID, Value: m.Value, IsEditing: m.IsEditing}
	if !r.registry.SetValue(m.ID, m.Value) {
		r.drop(string(m.Channel()), dropUnknownSession, zap.String("session", m.ID))
		return
	}
	r.registry.SetEditing(m.ID, state)

	s, _ := r.registry.Get(m.ID)
	r.forwardToOthers(s, sender, types.ChannelEditingStateChanged, state)
}

// forwardEditing relays the child's editing protocol to the opener. The
// opener owns the outcome and answers with notify-editing-state.
func (r *Router) forwardEditing(sender types.WindowHandle, m types.EditingRequest) {
	channel := m.Channel()

	s, ok := r.registry.Get(m.ID)
	if !ok {
		r.drop(string(channel), dropUnknownSession, zap.String("session", m.ID))
		return
	}
	if s.Opener == nil || s.Opener == sender {
		r.drop(string(channel), dropNoOpener, zap.String("session", m.ID))
		return
	}

	r.send(s.Opener, channel, m)
}

// stream delivers an event-bus envelope to its target, or to every live
// window except the sender
func (r *Router) stream(sender types.WindowHandle, m types.Envelope) {
	channel := string(m.Channel())

	m.SourceID = HostLabel
	if sender != nil {
		m.SourceID = r.windows.Label(sender)
	}

	if m.TargetID == "" {
		r.windows.Broadcast(types.ChannelWindowStream, m, sender)
		return
	}

	target, ok := r.windows.Lookup(m.TargetID)
	if !ok || target == sender {
		r.drop(channel, dropUnknownTarget, zap.String("target", m.TargetID))
		return
	}
	r.send(target, types.ChannelWindowStream, m)
}

func (r *Router) closeWindow(sender types.WindowHandle, m types.CloseWindow) {
	channel := string(m.Channel())

	if m.ID == "" {
		if sender == nil {
			r.drop(channel, dropNoSender)
			return
		}
		if err := sender.Close(); err != nil {
			r.drop(channel, dropSendFailed, zap.String("handle", sender.ID()), zap.Error(err))
		}
		return
	}

	if r.windows.Close(m.ID) {
		return
	}
	if h, ok := r.windows.Lookup(m.ID); ok {
		if err := h.Close(); err != nil {
			r.drop(channel, dropSendFailed, zap.String("window", m.ID), zap.Error(err))
		}
		return
	}
	r.drop(channel, dropUnknownTarget, zap.String("window", m.ID))
}

// forwardToOthers sends to the session's window and opener, skipping the
// sender and duplicates
func (r *Router) forwardToOthers(s registry.Session, sender types.WindowHandle, channel types.Channel, payload any) {
	for _, h := range []types.WindowHandle{s.Window, s.Opener} {
		if h == nil || h == sender {
			continue
		}
		if h == s.Opener && s.Opener == s.Window {
			continue
		}
		r.send(h, channel, payload)
	}
}

// openerFor attributes requests from outside any window to the primary
func (r *Router) openerFor(sender types.WindowHandle) types.WindowHandle {
	if sender != nil {
		return sender
	}
	return r.windows.Primary()
}

func (r *Router) send(h types.WindowHandle, channel types.Channel, payload any) {
	if h == nil {
		return
	}
	if err := h.Send(channel, payload); err != nil {
		r.drop(string(channel), dropSendFailed, zap.String("handle", h.ID()), zap.Error(err))
	}
}

// drop records a message that could not be routed. Expected during close
// races, so it is logged at debug.
func (r *Router) drop(channel, reason string, fields ...zap.Field) {
	if r.metrics != nil {
		r.metrics.RecordDrop(channel, reason)
	}
	r.logger.Debug("Message dropped",
		append([]zap.Field{zap.String("channel", channel), zap.String("reason", reason)}, fields...)...)
}
