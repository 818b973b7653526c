package content

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// ListPages returns the html pages under dist, slash-separated and sorted.
// A missing dist yields no pages.
func ListPages(dist string) ([]string, error) {
	if dist == "" {
		return nil, nil
	}
	if _, err := os.Stat(dist); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	pages, err := doublestar.Glob(os.DirFS(dist), "**/*.{html,htm}")
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	sort.Strings(pages)
	return pages, nil
}
