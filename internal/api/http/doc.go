/*
Package http provides the gin handlers of the host's control API.

Sessions and windows can be opened, updated and closed from outside any
window; such requests are attributed to the primary window as opener.

Endpoints:

	GET    /health              status, counts and a metrics snapshot
	GET    /sessions            registered sessions
	POST   /sessions            open or focus a session {id, value}
	GET    /sessions/:id        one session
	PUT    /sessions/:id/value  set a session value {value}
	DELETE /sessions/:id        close a session window
	GET    /windows             tracked windows and their state
	POST   /windows             create a window from a full config
	DELETE /windows/:id         close a window by session id or label
	POST   /broadcast           publish an event-bus message
	GET    /pages               packaged pages
	POST   /logs                renderer log batches
	GET    /metrics/json        metrics as JSON
*/
package http
