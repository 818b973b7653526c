// Package ws is the host side of the renderer bridge.
//
// A renderer dials /bridge/:window?token=... with the id and token from its
// launch URL. Each text frame is {"channel": ..., "payload": ...}; frames are
// decoded into typed messages and queued on the router with the window's
// handle as sender. Outbound frames are written by the handle itself.
package ws
