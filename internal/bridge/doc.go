/*
Package bridge is the renderer side of the host bridge.

A renderer is launched with a URL carrying its bridge address. Dial accepts
that launch URL or the bridge URL itself. Every send fails with
ErrBridgeUnavailable when no connection is live.

Example Usage:

	c, err := bridge.Dial(ctx, launchURL, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	c.OnInitValue(func(v types.InitValue) { fmt.Println(v.Value) })
	_ = c.RequestCurrentValue()
	_ = c.UpdateValue(v.ID, "edited")
*/
package bridge
