// Package main is windowctl, the operator tool for a running windowsync host.
//
// Usage:
//
//	windowctl [-server URL] [-trace] <command> [args]
//
// REST commands:
//
//	health
//	sessions
//	session <id>
//	open <id> [value]
//	update <id> <value>
//	close <id>
//	windows
//	create <json window config>
//	closewin <id>
//	broadcast <channel> [json] [@target]
//	pages
//
// Attaching to a window:
//
//	windowctl attach <bridge or launch url>
//
// attach connects to the window's bridge the way its renderer would and
// opens an interactive prompt. Use it with BRIDGE_LAUNCH_COMMAND="echo"
// or the URLs the host logs to drive windows by hand.
package main
