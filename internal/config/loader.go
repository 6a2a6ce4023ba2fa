// Package config provides island configuration loading and management.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/island-mesh/island/internal/constants"
	"github.com/island-mesh/island/internal/safe"
)

// Loader locates, loads and saves the island config file.
type Loader struct {
	baseDir string
	layers  *LayeredLoader
}

// NewLoader creates a config loader.
// The base directory is resolved in this order:
//  1. ISLAND_CONFIG environment variable.
//  2. User home directory (~/).
//  3. The system temp directory, for containers without a home dir.
func NewLoader() *Loader {
	return NewLoaderAt(baseDir())
}

// NewLoaderAt creates a config loader rooted at baseDir.
func NewLoaderAt(baseDir string) *Loader {
	return &Loader{
		baseDir: baseDir,
		layers:  NewLayeredLoader(baseDir),
	}
}

func baseDir() string {
	if dir := os.Getenv("ISLAND_CONFIG"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return filepath.Join(os.TempDir(), "island-fallback")
}

// Layers exposes the layered loader, e.g. to attach command-line flags.
func (l *Loader) Layers() *LayeredLoader {
	return l.layers
}

// ConfigPath returns the path to the config file.
func (l *Loader) ConfigPath() string {
	return filepath.Join(l.baseDir, constants.DefaultDir, constants.ConfigFile)
}

// Load returns the layered configuration.
func (l *Loader) Load() (*IslandConfig, error) {
	return l.layers.Load(l.ConfigPath())
}

// Save writes cfg to the config file with owner-only permissions.
func (l *Loader) Save(cfg *IslandConfig, logger zerolog.Logger) error {
	path := l.ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := safe.WriteFile(path, bytes.NewReader(data), nil, logger); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
