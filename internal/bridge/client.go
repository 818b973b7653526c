package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrBridgeUnavailable is returned when there is no live connection to the host
var ErrBridgeUnavailable = errors.New("bridge unavailable")

const writeWait = 10 * time.Second

// Handler receives the raw payload of an inbound frame
type Handler func(payload json.RawMessage)

// Client is the renderer side of the bridge: it sends typed messages to
// the host and fans inbound frames out to channel handlers.
// A nil or closed Client returns ErrBridgeUnavailable from every send.
type Client struct {
	conn   *websocket.Conn
	logger *zap.Logger
	done   chan struct{}

	writeMu sync.Mutex

	mu       sync.RWMutex
	handlers map[types.Channel]map[int]Handler // Protected by mu
	any      map[int]func(types.Frame)         // Protected by mu
	nextID   int                               // Protected by mu
	closed   bool                              // Protected by mu
	err      error                             // Protected by mu
}

// ResolveURL accepts either a bridge URL or the launch URL a renderer was
// opened with, and returns the bridge URL
func ResolveURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return raw, nil
	}
	if bridge := u.Query().Get("bridge"); bridge != "" {
		return bridge, nil
	}
	return "", fmt.Errorf("no bridge address in %q", raw)
}

// Dial connects to the host bridge at rawURL
func Dial(ctx context.Context, rawURL string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	bridgeURL, err := ResolveURL(rawURL)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, bridgeURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: host answered %s", ErrBridgeUnavailable, resp.Status)
		}
		return nil, fmt.Errorf("%w: %v", ErrBridgeUnavailable, err)
	}

	c := &Client{
		conn:     conn,
		logger:   logger.Named("bridge"),
		done:     make(chan struct{}),
		handlers: make(map[types.Channel]map[int]Handler),
		any:      make(map[int]func(types.Frame)),
	}
	go c.readLoop()
	return c, nil
}

// Post validates and sends a typed message
func (c *Client) Post(msg types.Message) error {
	if err := types.Validate(msg); err != nil {
		return err
	}
	return c.Send(msg.Channel(), msg)
}

// Send writes one frame
func (c *Client) Send(channel types.Channel, payload any) error {
	if c == nil || !c.Connected() {
		return ErrBridgeUnavailable
	}

	data, err := types.Encode(channel, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", channel, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.shutdown(err)
		return fmt.Errorf("%w: %v", ErrBridgeUnavailable, err)
	}
	return nil
}

// On registers fn for frames on channel. The returned func unsubscribes.
// Handlers run on the client's read goroutine.
func (c *Client) On(channel types.Channel, fn Handler) func() {
	if c == nil {
		return func() {}
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	if c.handlers[channel] == nil {
		c.handlers[channel] = make(map[int]Handler)
	}
	c.handlers[channel][id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers[channel], id)
		c.mu.Unlock()
	}
}

// OnAny registers fn for every inbound frame
func (c *Client) OnAny(fn func(types.Frame)) func() {
	if c == nil {
		return func() {}
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.any[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.any, id)
		c.mu.Unlock()
	}
}

// Connected reports whether the connection is live
func (c *Client) Connected() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, nil after a clean Close
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Close ends the connection. The host treats it as the window closing.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}

	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.writeMu.Unlock()

	c.shutdown(nil)
	return nil
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.err = err
	c.mu.Unlock()

	_ = c.conn.Close()
	close(c.done)
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || !c.Connected() {
				c.shutdown(nil)
			} else {
				c.shutdown(err)
			}
			return
		}

		frame, err := types.DecodeFrame(data)
		if err != nil {
			c.logger.Debug("Invalid frame from host", zap.Error(err))
			continue
		}
		c.deliver(frame)
	}
}

func (c *Client) deliver(frame types.Frame) {
	c.mu.RLock()
	handlers := make([]Handler, 0, len(c.handlers[frame.Channel]))
	for _, fn := range c.handlers[frame.Channel] {
		handlers = append(handlers, fn)
	}
	all := make([]func(types.Frame), 0, len(c.any))
	for _, fn := range c.any {
		all = append(all, fn)
	}
	c.mu.RUnlock()

	for _, fn := range handlers {
		fn(frame.Payload)
	}
	for _, fn := range all {
		fn(frame)
	}
}

