/*
Package wshost provides window handles backed by renderers that connect over
the websocket bridge.

Creating a handle mints a window id and an attach token. Loading content
hands a launch URL to a Launcher and waits until a renderer attaches on
/bridge/:window with the matching token. Frames sent before that are queued.

Example Usage:

	host := wshost.New(wshost.Config{PublicURL: "ws://127.0.0.1:8000"},
		wshost.NewLauncher(cfg.Bridge.LaunchCommand, logger), logger)

	h, _ := host.Create(types.WindowConfig{ID: "s1"})
	go h.LoadContent(ctx, target)

	// in the bridge endpoint
	handle, err := host.Attach(windowID, token, conn)
*/
package wshost
