package types

// OpenRequest is the HTTP body for opening or focusing a session
type OpenRequest struct {
	ID    string `json:"id" binding:"required"`
	Value string `json:"value"`
}

// ValueRequest is the HTTP body for updating a session value
type ValueRequest struct {
	Value string `json:"value"`
}

// BroadcastRequest is the HTTP body for publishing an event-bus message
type BroadcastRequest struct {
	Channel  string `json:"channel" binding:"required"`
	Payload  any    `json:"payload"`
	TargetID string `json:"targetId,omitempty"`
}

// SessionView is the read-only HTTP representation of a session
type SessionView struct {
	ID        string        `json:"id"`
	Value     string        `json:"value"`
	Route     string        `json:"route,omitempty"`
	HandleID  string        `json:"handle_id"`
	OpenerID  string        `json:"opener_id,omitempty"`
	Editing   *EditingState `json:"editing,omitempty"`
	CreatedAt int64         `json:"created_at"`
	UpdatedAt int64         `json:"updated_at"`
}
