// Package ctl implements windowctl, the operator tool for a running host.
//
// Client talks to the REST API with resty. Shell attaches to a window's
// bridge like a renderer would and sends typed messages typed at a
// readline prompt, printing every frame the host delivers.
//
// Shell commands:
//
//	open <id> [value]             open-or-focus
//	update <id> <value>           update-value
//	request                       request-current-value
//	close <id>                    close
//	editing <id> on|off [value]   notify-editing-state
//	edit <action> <id> [value]    start|sync|save|cancel editing
//	stream <topic> [json] [@id]   window-stream, broadcast without @id
//	create <json>                 window-create
//	closewin [id]                 window-close, this window without id
package ctl
