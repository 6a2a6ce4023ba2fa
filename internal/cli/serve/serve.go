// Package serve implements 'island serve', which runs the island API.
package serve

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/island-mesh/island/internal/cli/helpers"
	"github.com/island-mesh/island/internal/config"
	"github.com/island-mesh/island/internal/constants"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the island server",
		Long: `Run the island server.

The server:
- Opens the DuckDB database in the data directory
- Registers this host as the island machine
- Serves the report, mode, agent control, PBA upload and plugin index API

It stops gracefully on SIGINT or SIGTERM.

Examples:
  island serve
  island serve --port 5443 --initial-mode ransomware
  ISLAND_AUTH_REQUIRE=true island serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loader, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration (%s): %w", loader.ConfigPath(), err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cmd, cfg)
		},
	}

	config.BindFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, cfg *config.IslandConfig) error {
	logger := helpers.NewLogger(cmd, cfg)

	isl, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := isl.Start(); err != nil {
		_ = isl.Shutdown(constants.DefaultShutdownTimeout)
		return err
	}

	logger.Info().
		Str("url", isl.URL()).
		Str("data_dir", cfg.DataDir).
		Bool("auth", cfg.Auth.Require).
		Msg("Island is up")

	<-ctx.Done()
	logger.Info().Msg("Shutting down island")

	if err := isl.Shutdown(constants.DefaultShutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("Island stopped")
	return nil
}
