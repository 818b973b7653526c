// Package main is the entry point for the windowsync host.
//
// The host owns a primary window and any number of child editor windows.
// Renderers connect back over the websocket bridge and exchange messages
// with the host, which keeps each child's value in sync with the primary.
//
// Architecture:
//
//	Primary renderer ─┐
//	                  ├─ /bridge/:window ─→ Router ─→ Registry
//	Child renderers  ─┘                        └──→ Window manager ─→ Launcher
//	HTTP clients ─────── REST API ─────────────↑
//
// The server provides:
//   - Websocket bridge for renderer windows
//   - REST API for sessions, windows and pages
//   - Prometheus metrics at /metrics
//
// Configuration:
//   - Environment variables, with an optional .env overlay
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Packaged pages from ./dist
//	./server -port 8000 -dist ./dist
//
//	# Pages from a dev server, with debug logs
//	./server -dev http://localhost:5173
//
// The process exits when the primary window closes.
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
