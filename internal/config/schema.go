package config

import (
	"time"

	"github.com/island-mesh/island/internal/logging"
)

// IslandConfig is the configuration of an island server.
type IslandConfig struct {
	Version string `yaml:"version"`

	// DataDir holds the database, uploaded PBA files and tokens.
	DataDir string `yaml:"data_dir" env:"ISLAND_DATA_DIR"`

	Log     logging.Config `yaml:"log"`
	Server  ServerConfig   `yaml:"server"`
	Auth    AuthConfig     `yaml:"auth"`
	Mode    ModeConfig     `yaml:"mode"`
	Plugins PluginsConfig  `yaml:"plugins"`
	Island  MachineConfig  `yaml:"island"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Host              string        `yaml:"host" env:"ISLAND_SERVER_HOST"`
	Port              int           `yaml:"port" env:"ISLAND_SERVER_PORT"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"ISLAND_SERVER_READ_HEADER_TIMEOUT"`
	TLS               TLSConfig     `yaml:"tls"`
}

// TLSConfig enables HTTPS when both files are set.
type TLSConfig struct {
	CertFile string `yaml:"cert_file" env:"ISLAND_TLS_CERT_FILE"`
	KeyFile  string `yaml:"key_file" env:"ISLAND_TLS_KEY_FILE"`
}

// Enabled reports whether a certificate is configured.
func (c TLSConfig) Enabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// AuthConfig configures API authentication.
type AuthConfig struct {
	// Require turns on bearer token checks for protected routes.
	Require bool `yaml:"require" env:"ISLAND_AUTH_REQUIRE"`

	// TokensFile stores hashed API tokens. Relative paths resolve against the data dir.
	TokensFile string `yaml:"tokens_file" env:"ISLAND_AUTH_TOKENS_FILE"`

	// JWTSecret signs access tokens. A random secret is generated at startup when empty.
	JWTSecret string `yaml:"jwt_secret,omitempty" env:"ISLAND_AUTH_JWT_SECRET"`

	JWTTTL time.Duration `yaml:"jwt_ttl" env:"ISLAND_AUTH_JWT_TTL"`
}

// ModeConfig configures the island mode.
type ModeConfig struct {
	// Initial is used when the database holds no mode yet.
	Initial string `yaml:"initial" env:"ISLAND_MODE"`
}

// PluginsConfig configures the agent plugin repository.
type PluginsConfig struct {
	RepositoryURL string        `yaml:"repository_url" env:"ISLAND_PLUGINS_REPOSITORY_URL"`
	IndexTTL      time.Duration `yaml:"index_ttl" env:"ISLAND_PLUGINS_INDEX_TTL"`
}

// MachineConfig describes the island's own machine record.
type MachineConfig struct {
	HostnameOverride string `yaml:"hostname_override,omitempty" env:"ISLAND_HOSTNAME"`
}
