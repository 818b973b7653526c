package types

import (
	"context"
	"errors"
)

var (
	// ErrHandleClosed is returned by handle operations after the window closed
	ErrHandleClosed = errors.New("window handle closed")
)

// WindowHandle is a live window resource owned by a WindowProvider.
// Handles compare by identity; the registry and router rely on that.
type WindowHandle interface {
	// ID is the transport identity of the handle, stable for its lifetime
	ID() string
	// LoadContent blocks until the window finished loading target
	LoadContent(ctx context.Context, target Target) error
	// Send delivers a message to the renderer. Safe to call while loading.
	Send(channel Channel, payload any) error
	Focus() error
	// Close asks the window to close. The close is reported through OnClosed.
	Close() error
	// OnClosed registers fn to run once when the window is gone,
	// whoever closed it.
	OnClosed(fn func())
}

// WindowProvider creates window handles
type WindowProvider interface {
	Create(cfg WindowConfig) (WindowHandle, error)
}

// WindowConfig describes a window to create
type WindowConfig struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	X           *int   `json:"x,omitempty"`
	Y           *int   `json:"y,omitempty"`
	Page        string `json:"page,omitempty"`
	Route       string `json:"route,omitempty"`
	Value       string `json:"value,omitempty"`
	InitialData any    `json:"initialData,omitempty"`
	// Primary marks the host's main window; it has no session
	Primary bool `json:"-"`
}

// WindowState is the lifecycle state of a handle
type WindowState int

const (
	WindowCreated WindowState = iota
	WindowLoading
	WindowReady
	WindowClosed
)

// String returns the state name
func (s WindowState) String() string {
	switch s {
	case WindowCreated:
		return "created"
	case WindowLoading:
		return "loading"
	case WindowReady:
		return "ready"
	case WindowClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TargetKind tells whether content comes from a live endpoint or a packaged file
type TargetKind int

const (
	TargetURL TargetKind = iota
	TargetFile
)

// Target is resolved window content
type Target struct {
	Kind     TargetKind `json:"kind"`
	Location string     `json:"location"`
	// Fragment is the in-page route, without the leading '#'
	Fragment string `json:"fragment,omitempty"`
}

// String renders the target as a single URL or path with its fragment
func (t Target) String() string {
	if t.Fragment == "" {
		return t.Location
	}
	return t.Location + "#" + t.Fragment
}

// WindowInfo is a read-only view of a tracked window
type WindowInfo struct {
	HandleID  string      `json:"handle_id"`
	SessionID string      `json:"session_id,omitempty"`
	Primary   bool        `json:"primary"`
	State     WindowState `json:"-"`
	StateName string      `json:"state"`
}
