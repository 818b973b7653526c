package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// ErrUnsupportedProfileFormat is returned for profile files that are neither YAML nor TOML
var ErrUnsupportedProfileFormat = errors.New("unsupported profile format")

// Profile holds per-page window defaults.
type Profile struct {
	Title  string `yaml:"title" toml:"title"`
	Width  int    `yaml:"width" toml:"width"`
	Height int    `yaml:"height" toml:"height"`
}

// Profiles maps a page name to its window defaults.
type Profiles map[string]Profile

type profileFile struct {
	Windows map[string]Profile `yaml:"windows" toml:"windows"`
}

// LoadProfiles reads window profiles from a YAML or TOML file.
// An empty path yields no profiles.
func LoadProfiles(path string) (Profiles, error) {
	if path == "" {
		return Profiles{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	return ParseProfiles(filepath.Ext(path), data)
}

// ParseProfiles decodes profile data by file extension.
func ParseProfiles(ext string, data []byte) (Profiles, error) {
	var file profileFile

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse yaml profiles: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse toml profiles: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProfileFormat, ext)
	}

	profiles := make(Profiles, len(file.Windows))
	for page, p := range file.Windows {
		profiles[page] = p
	}
	return profiles, nil
}

// Size returns width and height for a page, falling back to the window defaults.
func (p Profiles) Size(page string, defaults WindowConfig) (int, int) {
	width, height := defaults.Width, defaults.Height
	if prof, ok := p[page]; ok {
		if prof.Width > 0 {
			width = prof.Width
		}
		if prof.Height > 0 {
			height = prof.Height
		}
	}
	return width, height
}

// Title returns the configured title for a page, if any.
func (p Profiles) Title(page string) string {
	return p[page].Title
}
