// Package registry holds the session registry.
//
// A session pairs an opaque id with its last known value, the live window
// that edits it and the window that opened it. The registry performs no IPC;
// the router and the window manager decide what to send.
//
// Invariants:
//   - At most one live window per id: Put never replaces an existing entry
//   - An entry exists only while its window is live; it is removed by the
//     window's close event (RemoveIfWindow)
//   - Value is last-write-wins in event-loop order
//
// All mutations happen on the event loop. The RWMutex lets HTTP handlers
// read snapshots from their own goroutines.
//
// Example Usage:
//
//	reg := registry.New()
//	if _, inserted := reg.Put(registry.Session{ID: id, Window: h}); !inserted {
//		// already open: focus instead
//	}
//	reg.SetValue(id, "draft")
//	id, ok := reg.FindIDByHandle(sender)
package registry
