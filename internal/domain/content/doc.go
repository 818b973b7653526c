// Package content decides where window pages come from and loads them.
//
// Resolve is a pure function of the page name, the route and one startup
// flag: with a dev server URL it builds a URL, otherwise a path under the
// packaged dist directory. The route becomes the target's fragment.
//
// Loader wraps a window's LoadContent with a reachability probe
// (retryablehttp for dev URLs, a mimetype check for packaged files), a
// timeout and a circuit breaker. A failed load is returned to the window
// manager, which closes the window.
package content
