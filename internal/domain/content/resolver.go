package content

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
)

// DefaultPage is loaded when a window names no page
const DefaultPage = "index.html"

// Resolver maps a logical page to a loadable target. The dev/packaged choice
// is fixed at construction.
type Resolver struct {
	devURL string
	dist   string
}

// NewResolver creates a resolver. A non-empty devURL selects dev mode.
func NewResolver(devURL, dist string) Resolver {
	return Resolver{
		devURL: strings.TrimSpace(devURL),
		dist:   dist,
	}
}

// DevMode reports whether pages come from a dev server
func (r Resolver) DevMode() bool {
	return r.devURL != ""
}

// Dist returns the packaged content directory
func (r Resolver) Dist() string {
	return r.dist
}

// Resolve returns the target for page with route as the in-page fragment.
// An absolute http(s) page is used as is.
func (r Resolver) Resolve(page, route string) types.Target {
	fragment := strings.TrimPrefix(route, "#")

	if isAbsoluteURL(page) {
		return types.Target{Kind: types.TargetURL, Location: page, Fragment: fragment}
	}

	page = strings.TrimLeft(page, "/")
	if page == "" {
		page = DefaultPage
	}

	if r.DevMode() {
		return types.Target{Kind: types.TargetURL, Location: joinURL(r.devURL, page), Fragment: fragment}
	}

	return types.Target{
		Kind:     types.TargetFile,
		Location: filepath.Join(r.dist, filepath.FromSlash(page)),
		Fragment: fragment,
	}
}

func joinURL(base, page string) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	b, err := url.Parse(base)
	if err != nil {
		return base + page
	}
	p, err := url.Parse(page)
	if err != nil {
		return base + page
	}
	return b.ResolveReference(p).String()
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
