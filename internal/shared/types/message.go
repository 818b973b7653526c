package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrMissingID      = errors.New("missing session id")
)

// Channel names a logical message channel
type Channel string

// Inbound channels (renderer → host)
const (
	ChannelOpenOrFocus         Channel = "open-or-focus"
	ChannelUpdateValue         Channel = "update-value"
	ChannelRequestCurrentValue Channel = "request-current-value"
	ChannelClose               Channel = "close"
	ChannelNotifyEditingState  Channel = "notify-editing-state"
	ChannelStartEditing        Channel = "start-editing"
	ChannelSyncEditing         Channel = "sync-editing"
	ChannelSaveEditing         Channel = "save-editing"
	ChannelCancelEditing       Channel = "cancel-editing"
	ChannelWindowStream        Channel = "window-stream"
	ChannelWindowCreate        Channel = "window-create"
	ChannelWindowClose         Channel = "window-close"
)

// Outbound channels (host → renderer). update-value, the editing channels
// and window-stream are reused in both directions.
const (
	ChannelInitValue           Channel = "init-value"
	ChannelEditingStateChanged Channel = "editing-state-changed"
	ChannelEditWindowClosed    Channel = "edit-window-closed"
	ChannelFocus               Channel = "focus"
	ChannelWindowEvent         Channel = "window-event"
)

// Message is one of the closed set of inbound variants below
type Message interface {
	Channel() Channel
}

// OpenOrFocus opens a session window, or focuses it if already live
type OpenOrFocus struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// UpdateValue sets a session's value and forwards it to the other side
type UpdateValue struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// RequestCurrentValue asks for the sender's own session value.
// The session is inferred from the sender's handle.
type RequestCurrentValue struct{}

// Close closes a session window
type Close struct {
	ID string `json:"id"`
}

// NotifyEditingState reflects the opener's authoritative editing state
type NotifyEditingState struct {
	ID        string `json:"id"`
	Value     string `json:"value"`
	IsEditing bool   `json:"isEditing"`
}

// EditingAction is one step of the child-driven editing protocol
type EditingAction string

const (
	EditStart  EditingAction = "start"
	EditSync   EditingAction = "sync"
	EditSave   EditingAction = "save"
	EditCancel EditingAction = "cancel"
)

// EditingRequest is forwarded from a child window to its opener
type EditingRequest struct {
	Action EditingAction `json:"-"`
	ID     string        `json:"id"`
	Value  string        `json:"value"`
}

// Envelope is a generic event-bus message. An empty TargetID broadcasts to
// every live window except the sender.
type Envelope struct {
	Topic    string          `json:"channel"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	TargetID string          `json:"targetId,omitempty"`
	SourceID string          `json:"sourceId,omitempty"`
}

// CreateWindow opens a window with a full configuration
type CreateWindow struct {
	WindowConfig
}

// CloseWindow closes a window by session id, or the sender's own window
// when ID is empty
type CloseWindow struct {
	ID string `json:"id,omitempty"`
}

func (OpenOrFocus) Channel() Channel         { return ChannelOpenOrFocus }
func (UpdateValue) Channel() Channel         { return ChannelUpdateValue }
func (RequestCurrentValue) Channel() Channel { return ChannelRequestCurrentValue }
func (Close) Channel() Channel               { return ChannelClose }
func (NotifyEditingState) Channel() Channel  { return ChannelNotifyEditingState }
func (Envelope) Channel() Channel            { return ChannelWindowStream }
func (CreateWindow) Channel() Channel        { return ChannelWindowCreate }
func (CloseWindow) Channel() Channel         { return ChannelWindowClose }

// Channel maps the editing action back to its wire channel
func (r EditingRequest) Channel() Channel {
	switch r.Action {
	case EditStart:
		return ChannelStartEditing
	case EditSync:
		return ChannelSyncEditing
	case EditSave:
		return ChannelSaveEditing
	default:
		return ChannelCancelEditing
	}
}

// Outbound payloads

// InitValue is delivered once when a window becomes ready, and again on request
type InitValue struct {
	ID    string `json:"id"`
	Value string `json:"value"`
	Route string `json:"route,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// EditingState is the payload of editing-state-changed
type EditingState struct {
	ID        string `json:"id"`
	Value     string `json:"value"`
	IsEditing bool   `json:"isEditing"`
}

// WindowClosedEvent is the payload of edit-window-closed
type WindowClosedEvent struct {
	ID string `json:"id"`
}

// WindowEventType names a lifecycle event broadcast on window-event
type WindowEventType string

const (
	EventCreated WindowEventType = "created"
	EventFocused WindowEventType = "focused"
	EventClosed  WindowEventType = "closed"
)

// WindowEvent is broadcast to live windows when another window changes
type WindowEvent struct {
	Type      WindowEventType `json:"type"`
	WindowID  string          `json:"windowId"`
	Timestamp int64           `json:"timestamp"`
}

// Frame is the wire form of every message on the bridge
type Frame struct {
	Channel Channel         `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outFrame struct {
	Channel Channel `json:"channel"`
	Payload any     `json:"payload,omitempty"`
}

// Encode serializes an outbound frame
func Encode(channel Channel, payload any) ([]byte, error) {
	return sonic.Marshal(outFrame{Channel: channel, Payload: payload})
}

// DecodeFrame parses the outer frame without interpreting the payload
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return f, nil
}

// Decode parses and validates an inbound frame into its typed variant
func Decode(data []byte) (Message, error) {
	f, err := DecodeFrame(data)
	if err != nil {
		return nil, err
	}
	return DecodePayload(f.Channel, f.Payload)
}

// DecodePayload builds the variant for channel from its raw payload
func DecodePayload(channel Channel, raw json.RawMessage) (Message, error) {
	var msg Message
	switch channel {
	case ChannelOpenOrFocus:
		var m OpenOrFocus
		if err := unmarshal(raw, &m); err != nil {
			return nil, err
		}
		msg = m
	case ChannelUpdateValue:
		var m UpdateValue
		if err := unmarshal(raw, &m); err != nil {
			return nil, err
		}
		msg = m
	case ChannelRequestCurrentValue:
		msg = RequestCurrentValue{}
	case ChannelClose:
		var m Close
		if err := unmarshal(raw, &m); err != nil {
			return nil, err
		}
		msg = m
	case ChannelNotifyEditingState:
		var m NotifyEditingState
		if err := unmarshal(raw, &m); err != nil {
			return nil, err
		}
		msg = m
	case ChannelStartEditing, ChannelSyncEditing, ChannelSaveEditing, ChannelCancelEditing:
		m := EditingRequest{Action: editingAction(channel)}
		if err := unmarshal(raw, &m); err != nil {
			return nil, err
		}
		msg = m
	case ChannelWindowStream:
		var m Envelope
		if err := unmarshal(raw, &m); err != nil {
			return nil, err
		}
		msg = m
	case ChannelWindowCreate:
		var m CreateWindow
		if err := unmarshal(raw, &m); err != nil {
			return nil, err
		}
		msg = m
	case ChannelWindowClose:
		var m CloseWindow
		if err := unmarshal(raw, &m); err != nil {
			return nil, err
		}
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}

	if err := Validate(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Validate checks the fields a variant cannot be routed without.
// Empty values are allowed; content rules belong to the UI.
func Validate(msg Message) error {
	switch m := msg.(type) {
	case OpenOrFocus:
		return requireID(m.ID)
	case UpdateValue:
		return requireID(m.ID)
	case Close:
		return requireID(m.ID)
	case NotifyEditingState:
		return requireID(m.ID)
	case EditingRequest:
		return requireID(m.ID)
	case Envelope:
		if strings.TrimSpace(m.Topic) == "" {
			return fmt.Errorf("%w: envelope without channel", ErrInvalidPayload)
		}
	}
	return nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	return nil
}

func editingAction(channel Channel) EditingAction {
	switch channel {
	case ChannelStartEditing:
		return EditStart
	case ChannelSyncEditing:
		return EditSync
	case ChannelSaveEditing:
		return EditSave
	default:
		return EditCancel
	}
}

func unmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := sonic.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
