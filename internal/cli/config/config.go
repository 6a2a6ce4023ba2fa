// Package config implements the 'island config' command family.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/island-mesh/island/internal/cli/helpers"
	"github.com/island-mesh/island/internal/config"
)

// NewConfigCmd creates the config command and its subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage the island configuration",
		Long: `Inspect and manage the island configuration.

Configuration is layered, each layer overriding the previous one:
  1. Built-in defaults
  2. Config file (~/.island/config.yaml)
  3. Environment variables (ISLAND_*)
  4. Command-line flags

Environment Variables:
  ISLAND_CONFIG   Override the directory holding .island/config.yaml (default: ~)`,
	}

	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newEnvCmd())

	return cmd
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret != "" {
				cfg.Auth.JWTSecret = "<redacted>"
			}
			return (&helpers.YAMLFormatter{}).Format(cfg, cmd.OutOrStdout())
		},
	}

	config.BindFlags(cmd.Flags())

	return cmd
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loader, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				var multi *config.MultiValidationError
				if errors.As(err, &multi) {
					cmd.PrintErrf("%s is invalid:\n", loader.ConfigPath())
					for _, e := range multi.Errors {
						cmd.PrintErrf("  - %s\n", e.Error())
					}
					return fmt.Errorf("%d validation errors", len(multi.Errors))
				}
				return err
			}

			cmd.Printf("✓ %s is valid\n", loader.ConfigPath())
			return nil
		},
	}

	config.BindFlags(cmd.Flags())
	return cmd
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader()
			path := loader.ConfigPath()

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg, err := loader.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := loader.Save(cfg, helpers.NewLogger(cmd, cfg)); err != nil {
				return err
			}

			cmd.Printf("✓ Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the environment variables the island reads",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.EnvVars(&config.IslandConfig{}) {
				cmd.Println(name)
			}
			return nil
		},
	}
}
