// Package types provides the data structures shared by the host components.
//
// Window Types:
//   - WindowHandle: A live window resource (implemented by a provider)
//   - WindowProvider: Creates handles from a WindowConfig
//   - WindowState: Created → Loading → Ready → Closed
//   - Target: Resolved window content (dev URL or packaged file)
//
// Message Types:
//   - Message: Closed set of inbound variants, one per channel
//   - Frame: Wire envelope {channel, payload}
//   - InitValue, EditingState, WindowClosedEvent, WindowEvent: Outbound payloads
//
// Inbound frames are decoded and validated at the boundary:
//
//	msg, err := types.Decode(data)
//	if err != nil {
//	    // unknown channel or malformed payload; drop it
//	}
//	router.Dispatch(handle, msg)
package types
