package helpers

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/island-mesh/island/internal/config"
	"github.com/island-mesh/island/internal/logging"
)

// ServerEnv names the island a client command talks to when --server is unset.
const ServerEnv = "ISLAND_SERVER"

// LoadConfig loads the layered island config. Flags bound with
// config.BindFlags on cmd override every other layer.
func LoadConfig(cmd *cobra.Command) (*config.IslandConfig, *config.Loader, error) {
	loader := config.NewLoader()
	loader.Layers().WithFlags(cmd.Flags())

	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, loader, nil
}

// NewLogger builds the command logger from the config's log section,
// writing to the command's error stream.
func NewLogger(cmd *cobra.Command, cfg *config.IslandConfig) zerolog.Logger {
	logCfg := cfg.Log
	logCfg.Output = cmd.ErrOrStderr()
	return logging.New(logCfg)
}

// ResolveServer picks the island address: the flag, then ISLAND_SERVER,
// then the configured port on localhost.
func ResolveServer(flag string, cfg *config.IslandConfig) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(ServerEnv); env != "" {
		return env
	}
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Server.Port))
}
