package bridge

import (
	"encoding/json"

	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/bytedance/sonic"
)

// OpenOrFocus opens the session window, or focuses it and sets its value
func (c *Client) OpenOrFocus(id, value string) error {
	return c.Post(types.OpenOrFocus{ID: id, Value: value})
}

// UpdateValue publishes a new value for a session
func (c *Client) UpdateValue(id, value string) error {
	return c.Post(types.UpdateValue{ID: id, Value: value})
}

// RequestCurrentValue asks for this window's session; the answer arrives
// on init-value
func (c *Client) RequestCurrentValue() error {
	return c.Post(types.RequestCurrentValue{})
}

// CloseSession closes a session window
func (c *Client) CloseSession(id string) error {
	return c.Post(types.Close{ID: id})
}

// NotifyEditingState reports the opener's editing state for a session
func (c *Client) NotifyEditingState(id, value string, isEditing bool) error {
	return c.Post(types.NotifyEditingState{ID: id, Value: value, IsEditing: isEditing})
}

// Edit sends one step of the editing protocol to the session's opener
func (c *Client) Edit(action types.EditingAction, id, value string) error {
	return c.Post(types.EditingRequest{Action: action, ID: id, Value: value})
}

// Stream publishes an event-bus message. An empty target broadcasts.
func (c *Client) Stream(topic string, payload any, target string) error {
	var raw json.RawMessage
	if payload != nil {
		data, err := sonic.Marshal(payload)
		if err != nil {
			return err
		}
		raw = data
	}
	return c.Post(types.Envelope{Topic: topic, Payload: raw, TargetID: target})
}

// CreateWindow opens a window from a full configuration
func (c *Client) CreateWindow(cfg types.WindowConfig) error {
	return c.Post(types.CreateWindow{WindowConfig: cfg})
}

// CloseWindow closes a window by id; an empty id closes this window
func (c *Client) CloseWindow(id string) error {
	return c.Post(types.CloseWindow{ID: id})
}

// OnInitValue subscribes to init-value
func (c *Client) OnInitValue(fn func(types.InitValue)) func() {
	return onTyped(c, types.ChannelInitValue, fn)
}

// OnUpdateValue subscribes to update-value
func (c *Client) OnUpdateValue(fn func(types.UpdateValue)) func() {
	return onTyped(c, types.ChannelUpdateValue, fn)
}

// OnEditingStateChanged subscribes to editing-state-changed
func (c *Client) OnEditingStateChanged(fn func(types.EditingState)) func() {
	return onTyped(c, types.ChannelEditingStateChanged, fn)
}

// OnWindowClosed subscribes to edit-window-closed
func (c *Client) OnWindowClosed(fn func(types.WindowClosedEvent)) func() {
	return onTyped(c, types.ChannelEditWindowClosed, fn)
}

// OnWindowEvent subscribes to window-event
func (c *Client) OnWindowEvent(fn func(types.WindowEvent)) func() {
	return onTyped(c, types.ChannelWindowEvent, fn)
}

// OnStream subscribes to event-bus messages
func (c *Client) OnStream(fn func(types.Envelope)) func() {
	return onTyped(c, types.ChannelWindowStream, fn)
}

func onTyped[T any](c *Client, channel types.Channel, fn func(T)) func() {
	return c.On(channel, func(payload json.RawMessage) {
		var v T
		if len(payload) > 0 {
			if err := sonic.Unmarshal(payload, &v); err != nil {
				return
			}
		}
		fn(v)
	})
}
