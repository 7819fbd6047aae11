// Package manifest handles keepsake.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a keepsake.toml configuration.
type Manifest struct {
	Registry RegistryConfig `toml:"registry"`
	Store    StoreConfig    `toml:"store"`
	Wire     WireConfig     `toml:"wire"`

	// Dir is the directory containing the keepsake.toml file (set at load time).
	Dir string `toml:"-"`
}

// RegistryConfig governs which wire type names a store accepts.
type RegistryConfig struct {
	// Deny lists type names refused at save and load time, regardless of
	// registration state.
	Deny []string `toml:"deny"`
}

// StoreConfig configures snapshot persistence.
type StoreConfig struct {
	// Driver is the database/sql driver name: "sqlite" or "duckdb".
	Driver string `toml:"driver"`

	// Path is the database file location, relative to the manifest
	// directory unless absolute.
	Path string `toml:"path"`
}

// WireConfig configures storage record framing.
type WireConfig struct {
	Compress    bool `toml:"compress"`
	CompressMin int  `toml:"compress-min"`
}

// Load parses a keepsake.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "keepsake.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Store.Driver == "" {
		m.Store.Driver = "sqlite"
	}
	if m.Store.Path == "" {
		m.Store.Path = "keepsake.db"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a keepsake.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "keepsake.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// DatabasePath returns the store path resolved against the manifest
// directory.
func (m *Manifest) DatabasePath() string {
	if filepath.IsAbs(m.Store.Path) {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}
