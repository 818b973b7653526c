package wshost

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Conn is the write side of a renderer connection. *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Handle is a window backed by a renderer connected over the bridge.
// Frames sent before the renderer attaches are queued and flushed on attach.
type Handle struct {
	id      string
	token   string
	primary bool
	host    *Host

	queue    chan []byte
	attached chan struct{}
	done     chan struct{}

	closeOnce sync.Once

	mu       sync.Mutex
	conn     Conn     // Protected by mu
	closed   bool     // Protected by mu
	onClosed []func() // Protected by mu
}

// ID returns the window handle id
func (h *Handle) ID() string { return h.id }

// Token returns the secret a renderer must present to attach
func (h *Handle) Token() string { return h.token }

// Primary reports whether this is the host's main window
func (h *Handle) Primary() bool { return h.primary }

// BridgeURL is the websocket address the renderer attaches to
func (h *Handle) BridgeURL() string {
	return h.host.bridgeURL(h.id, h.token)
}

// LoadContent launches a renderer at target and waits for it to attach
func (h *Handle) LoadContent(ctx context.Context, target types.Target) error {
	if h.isClosed() {
		return types.ErrHandleClosed
	}

	location := h.LaunchURL(target)
	if err := h.host.launcher.Launch(ctx, h.id, location); err != nil {
		return fmt.Errorf("launch renderer: %w", err)
	}

	select {
	case <-h.attached:
		return nil
	case <-h.done:
		return types.ErrHandleClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LaunchURL renders target as the address a renderer opens. The bridge
// address and window id travel as query parameters; the route stays in
// the fragment.
func (h *Handle) LaunchURL(target types.Target) string {
	location := target.Location
	if target.Kind == types.TargetFile {
		if abs, err := filepath.Abs(location); err == nil {
			location = abs
		}
		location = (&url.URL{Scheme: "file", Path: filepath.ToSlash(location)}).String()
	}

	u, err := url.Parse(location)
	if err != nil {
		return target.String()
	}
	q := u.Query()
	q.Set("window", h.id)
	q.Set("bridge", h.BridgeURL())
	u.RawQuery = q.Encode()
	u.Fragment = target.Fragment
	return u.String()
}

// Send encodes and queues a frame. It never blocks: a renderer that stops
// reading loses frames once the queue is full.
func (h *Handle) Send(channel types.Channel, payload any) error {
	data, err := types.Encode(channel, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", channel, err)
	}

	select {
	case <-h.done:
		return types.ErrHandleClosed
	default:
	}

	select {
	case h.queue <- data:
		return nil
	case <-h.done:
		return types.ErrHandleClosed
	default:
		return ErrQueueFull
	}
}

// Focus asks the renderer to raise its window
func (h *Handle) Focus() error {
	return h.Send(types.ChannelFocus, nil)
}

// Close ends the renderer connection and reports the close. Safe to call
// more than once.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		conn := h.conn
		callbacks := h.onClosed
		h.onClosed = nil
		h.mu.Unlock()

		close(h.done)
		if conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "window closed")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			_ = conn.Close()
		}
		h.host.forget(h)

		// Callbacks run off the caller's goroutine; the caller may be the
		// event loop the callbacks post to.
		go func() {
			for _, fn := range callbacks {
				fn()
			}
		}()
	})
	return nil
}

// OnClosed registers fn to run once after the window closes
func (h *Handle) OnClosed(fn func()) {
	h.mu.Lock()
	if !h.closed {
		h.onClosed = append(h.onClosed, fn)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	go fn()
}

// Done is closed when the handle closes
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Attached reports whether a renderer is connected
func (h *Handle) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil
}

func (h *Handle) attach(conn Conn) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return types.ErrHandleClosed
	}
	if h.conn != nil {
		h.mu.Unlock()
		return ErrAlreadyAttached
	}
	h.conn = conn
	h.mu.Unlock()

	close(h.attached)
	go h.writeLoop(conn)
	return nil
}

func (h *Handle) writeLoop(conn Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-h.queue:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.host.logger.Debug("Bridge write failed", zap.String("window", h.id), zap.Error(err))
				_ = h.Close()
				return
			}
			if h.host.metrics != nil {
				h.host.metrics.RecordWSMessage("out")
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = h.Close()
				return
			}
		case <-h.done:
			return
		}
	}
}

func (h *Handle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
