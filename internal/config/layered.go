package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/island-mesh/island/internal/safe"
)

// Layer represents a configuration layer source.
type Layer string

const (
	// LayerDefaults represents default configuration values.
	LayerDefaults Layer = "defaults"

	// LayerFile represents configuration from a file.
	LayerFile Layer = "file"

	// LayerEnv represents configuration from environment variables.
	LayerEnv Layer = "env"

	// LayerFlags represents configuration from command-line flags.
	LayerFlags Layer = "flags"
)

// Flag names bound by BindFlags.
const (
	FlagDataDir  = "data-dir"
	FlagHost     = "host"
	FlagPort     = "port"
	FlagLogLevel = "log-level"
	FlagPretty   = "pretty"
	FlagMode     = "initial-mode"
	FlagTimeout  = "read-header-timeout"
)

// LayeredLoader loads configuration in order:
// 1. Defaults - DefaultIslandConfig
// 2. File - configuration file (YAML)
// 3. Environment - environment variables
// 4. Flags - command-line flags that were explicitly set
//
// Each layer overrides values from previous layers.
type LayeredLoader struct {
	baseDir       string
	enabledLayers map[Layer]bool
	flags         *pflag.FlagSet
}

// NewLayeredLoader creates a loader whose defaults are rooted at baseDir.
// The flags layer is enabled once WithFlags is called.
func NewLayeredLoader(baseDir string) *LayeredLoader {
	return &LayeredLoader{
		baseDir: baseDir,
		enabledLayers: map[Layer]bool{
			LayerDefaults: true,
			LayerFile:     true,
			LayerEnv:      true,
			LayerFlags:    false,
		},
	}
}

// DisableLayer disables a specific configuration layer.
func (l *LayeredLoader) DisableLayer(layer Layer) {
	l.enabledLayers[layer] = false
}

// WithFlags sets the flag set read by the flags layer and enables it.
func (l *LayeredLoader) WithFlags(fs *pflag.FlagSet) *LayeredLoader {
	l.flags = fs
	l.enabledLayers[LayerFlags] = true
	return l
}

// Load builds an IslandConfig from the enabled layers. A missing file is not an error.
func (l *LayeredLoader) Load(configPath string) (*IslandConfig, error) {
	cfg := &IslandConfig{}
	if l.enabledLayers[LayerDefaults] {
		cfg = DefaultIslandConfig(l.baseDir)
	}

	if l.enabledLayers[LayerFile] && configPath != "" {
		if err := mergeFromFile(cfg, configPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if l.enabledLayers[LayerEnv] {
		if err := LoadFromEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from environment: %w", err)
		}
	}

	if l.enabledLayers[LayerFlags] && l.flags != nil {
		if err := applyFlags(cfg, l.flags); err != nil {
			return nil, fmt.Errorf("failed to load config from flags: %w", err)
		}
	}

	return cfg, nil
}

func mergeFromFile(cfg *IslandConfig, filePath string) error {
	f, err := safe.OpenFile(filePath, nil)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// BindFlags registers the server flags that the flags layer understands.
func BindFlags(fs *pflag.FlagSet) {
	fs.String(FlagDataDir, "", "directory holding the database, tokens and uploaded files")
	fs.String(FlagHost, "", "address the API listens on")
	fs.Int(FlagPort, 0, "port the API listens on")
	fs.String(FlagLogLevel, "", "log level (debug, info, warn, error)")
	fs.Bool(FlagPretty, false, "human readable console logs")
	fs.String(FlagMode, "", "mode used when the database holds none (unset, ransomware, advanced)")
	fs.Duration(FlagTimeout, 0, "HTTP read header timeout")
}

func applyFlags(cfg *IslandConfig, fs *pflag.FlagSet) error {
	var err error
	setString := func(name string, dst *string) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetString(name)
		}
	}
	setString(FlagDataDir, &cfg.DataDir)
	setString(FlagHost, &cfg.Server.Host)
	setString(FlagLogLevel, &cfg.Log.Level)
	setString(FlagMode, &cfg.Mode.Initial)

	if err == nil && fs.Changed(FlagPort) {
		cfg.Server.Port, err = fs.GetInt(FlagPort)
	}
	if err == nil && fs.Changed(FlagPretty) {
		cfg.Log.Pretty, err = fs.GetBool(FlagPretty)
	}
	if err == nil && fs.Changed(FlagTimeout) {
		cfg.Server.ReadHeaderTimeout, err = fs.GetDuration(FlagTimeout)
	}
	return err
}
