package config

import (
	"net"
	"path/filepath"
	"strconv"

	"github.com/island-mesh/island/internal/constants"
	"github.com/island-mesh/island/internal/logging"
)

// SchemaVersion is the current config file version.
const SchemaVersion = "1"

// DefaultIslandConfig returns the default configuration rooted at baseDir.
func DefaultIslandConfig(baseDir string) *IslandConfig {
	return &IslandConfig{
		Version: SchemaVersion,
		DataDir: filepath.Join(baseDir, constants.DefaultDir),
		Log: logging.Config{
			Level: "info",
		},
		Server: ServerConfig{
			Host:              constants.DefaultServerHost,
			Port:              constants.DefaultServerPort,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
		Auth: AuthConfig{
			TokensFile: constants.DefaultTokensFile,
			JWTTTL:     constants.DefaultJWTTTL,
		},
		Mode: ModeConfig{
			Initial: constants.DefaultIslandMode,
		},
		Plugins: PluginsConfig{
			RepositoryURL: constants.DefaultPluginRepositoryURL,
			IndexTTL:      constants.DefaultPluginIndexTTL,
		},
	}
}

// DatabasePath returns the DuckDB file path.
func (c *IslandConfig) DatabasePath() string {
	return filepath.Join(c.DataDir, constants.DefaultDatabaseFile)
}

// TokensPath returns the tokens file path, resolved against the data dir.
func (c *IslandConfig) TokensPath() string {
	return c.resolve(c.Auth.TokensFile)
}

// PBADir returns the directory holding uploaded PBA files.
func (c *IslandConfig) PBADir() string {
	return filepath.Join(c.DataDir, constants.DefaultPBADir)
}

// ListenAddress returns host:port for the HTTP listener.
func (c *IslandConfig) ListenAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func (c *IslandConfig) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}
