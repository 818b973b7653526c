// Package testutil provides window fakes and mocks shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/stretchr/testify/mock"
)

var handleSeq atomic.Int64

// Sent is one message delivered to a fake handle
type Sent struct {
	Channel types.Channel
	Payload any
}

// FakeHandle is an in-memory types.WindowHandle that records traffic.
// Close fires the OnClosed callbacks synchronously, once.
type FakeHandle struct {
	id   string
	done chan struct{}

	mu       sync.Mutex
	sent     []Sent
	focused  int
	closes   int
	closed   bool
	onClosed []func()
	loaded   []types.Target

	// LoadErr is returned by LoadContent when set
	LoadErr error
	// LoadGate, when non-nil, blocks LoadContent until it is closed, the
	// handle closes, or ctx ends
	LoadGate chan struct{}
	// SendErr is returned by Send when set
	SendErr error
}

// NewFakeHandle creates a fake handle with a unique id
func NewFakeHandle() *FakeHandle {
	return &FakeHandle{
		id:   fmt.Sprintf("fake-%d", handleSeq.Add(1)),
		done: make(chan struct{}),
	}
}

func (h *FakeHandle) ID() string { return h.id }

func (h *FakeHandle) LoadContent(ctx context.Context, target types.Target) error {
	h.mu.Lock()
	h.loaded = append(h.loaded, target)
	gate, err := h.LoadGate, h.LoadErr
	h.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-h.done:
			return types.ErrHandleClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (h *FakeHandle) Send(channel types.Channel, payload any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return types.ErrHandleClosed
	}
	if h.SendErr != nil {
		return h.SendErr
	}
	h.sent = append(h.sent, Sent{Channel: channel, Payload: payload})
	return nil
}

func (h *FakeHandle) Focus() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return types.ErrHandleClosed
	}
	h.focused++
	return nil
}

func (h *FakeHandle) Close() error {
	h.mu.Lock()
	h.closes++
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.done)
	callbacks := h.onClosed
	h.onClosed = nil
	h.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return nil
}

func (h *FakeHandle) OnClosed(fn func()) {
	h.mu.Lock()
	if !h.closed {
		h.onClosed = append(h.onClosed, fn)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	fn()
}

// SetLoadGate installs a gate before the handle is loaded
func (h *FakeHandle) SetLoadGate(gate chan struct{}) {
	h.mu.Lock()
	h.LoadGate = gate
	h.mu.Unlock()
}

// SetLoadErr makes the next loads fail with err
func (h *FakeHandle) SetLoadErr(err error) {
	h.mu.Lock()
	h.LoadErr = err
	h.mu.Unlock()
}

// Sent returns a copy of everything sent to the handle
func (h *FakeHandle) Sent() []Sent {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Sent, len(h.sent))
	copy(out, h.sent)
	return out
}

// Messages returns payloads sent on channel, in order
func (h *FakeHandle) Messages(channel types.Channel) []any {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []any
	for _, s := range h.sent {
		if s.Channel == channel {
			out = append(out, s.Payload)
		}
	}
	return out
}

// Count returns how many messages were sent on channel
func (h *FakeHandle) Count(channel types.Channel) int {
	return len(h.Messages(channel))
}

// Last returns the most recent payload on channel
func (h *FakeHandle) Last(channel types.Channel) (any, bool) {
	msgs := h.Messages(channel)
	if len(msgs) == 0 {
		return nil, false
	}
	return msgs[len(msgs)-1], true
}

// Reset forgets recorded traffic
func (h *FakeHandle) Reset() {
	h.mu.Lock()
	h.sent = nil
	h.focused = 0
	h.mu.Unlock()
}

// Focused returns the number of Focus calls
func (h *FakeHandle) Focused() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.focused
}

// Closes returns the number of Close calls
func (h *FakeHandle) Closes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

// IsClosed reports whether the handle has closed
func (h *FakeHandle) IsClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Loaded returns the targets passed to LoadContent
func (h *FakeHandle) Loaded() []types.Target {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]types.Target, len(h.loaded))
	copy(out, h.loaded)
	return out
}

// FakeProvider creates FakeHandles and records their configs
type FakeProvider struct {
	mu      sync.Mutex
	handles []*FakeHandle
	configs []types.WindowConfig

	// CreateErr is returned by Create when set
	CreateErr error
	// Prepare, when set, runs on every new handle before it is returned
	Prepare func(cfg types.WindowConfig, h *FakeHandle)
}

// NewFakeProvider creates an empty provider
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{}
}

func (p *FakeProvider) Create(cfg types.WindowConfig) (types.WindowHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.CreateErr != nil {
		return nil, p.CreateErr
	}
	h := NewFakeHandle()
	if p.Prepare != nil {
		p.Prepare(cfg, h)
	}
	p.handles = append(p.handles, h)
	p.configs = append(p.configs, cfg)
	return h, nil
}

// Handles returns every handle created so far
func (p *FakeProvider) Handles() []*FakeHandle {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*FakeHandle, len(p.handles))
	copy(out, p.handles)
	return out
}

// Configs returns every config passed to Create
func (p *FakeProvider) Configs() []types.WindowConfig {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]types.WindowConfig, len(p.configs))
	copy(out, p.configs)
	return out
}

// Created returns the number of handles created
func (p *FakeProvider) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// MockLauncher is a mock renderer launcher
type MockLauncher struct {
	mock.Mock
}

// Launch mocks opening a renderer at url
func (m *MockLauncher) Launch(ctx context.Context, windowID, url string) error {
	args := m.Called(ctx, windowID, url)
	return args.Error(0)
}
