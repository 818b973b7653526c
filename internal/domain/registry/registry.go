package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
)

// Session is one registered editing session and its window
type Session struct {
	ID          string
	Value       string
	Window      types.WindowHandle
	Opener      types.WindowHandle
	Editing     *types.EditingState
	Route       string
	InitialData any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Registry maps session ids to their live window and last known value.
// It performs no IPC.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session // Protected by mu
	now      func() time.Time
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns a copy of the session for id
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return s.copy(), true
}

// Put registers a session unless one already exists for its id.
// It returns the stored session and whether it was newly inserted.
func (r *Registry) Put(s Session) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[s.ID]; ok {
		return existing.copy(), false
	}

	now := r.now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	stored := s.copy()
	r.sessions[s.ID] = &stored
	return stored.copy(), true
}

// Remove deletes the session for id. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// RemoveIfWindow deletes the session only while it is still bound to h.
// A late close event from a replaced window must not evict its successor.
func (r *Registry) RemoveIfWindow(id string, h types.WindowHandle) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.Window != h {
		return Session{}, false
	}
	delete(r.sessions, id)
	return s.copy(), true
}

// SetValue replaces the value of a registered session
func (r *Registry) SetValue(id, value string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.Value = value
	s.UpdatedAt = r.now()
	return true
}

// Value returns the current value for id
func (r *Registry) Value(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return "", false
	}
	return s.Value, true
}

// SetEditing records the opener's editing state for id
func (r *Registry) SetEditing(id string, state types.EditingState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.Editing = &state
	s.UpdatedAt = r.now()
	return true
}

// SetInitialData replaces the data re-delivered with init-value
func (r *Registry) SetInitialData(id string, data any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.InitialData = data
	s.UpdatedAt = r.now()
	return true
}

// FindIDByHandle returns the id of the session whose window is h.
// Linear scan; session counts are small.
func (r *Registry) FindIDByHandle(h types.WindowHandle) (string, bool) {
	if h == nil {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, s := range r.sessions {
		if s.Window == h {
			return id, true
		}
	}
	return "", false
}

// List returns all sessions ordered by creation time
func (r *Registry) List() []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.copy())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of registered sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Clear removes every session and returns what was removed
func (r *Registry) Clear() []Session {
	r.mu.Lock()
	removed := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		removed = append(removed, s.copy())
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	return removed
}

func (s *Session) copy() Session {
	c := *s
	if s.Editing != nil {
		e := *s.Editing
		c.Editing = &e
	}
	return c
}

// View converts a session to its API representation
func (s Session) View() types.SessionView {
	v := types.SessionView{
		ID:        s.ID,
		Value:     s.Value,
		Route:     s.Route,
		Editing:   s.Editing,
		CreatedAt: s.CreatedAt.UnixMilli(),
		UpdatedAt: s.UpdatedAt.UnixMilli(),
	}
	if s.Window != nil {
		v.HandleID = s.Window.ID()
	}
	if s.Opener != nil {
		v.OpenerID = s.Opener.ID()
	}
	return v
}
