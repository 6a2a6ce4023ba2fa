// Package token implements the 'island token' command family.
package token

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/island-mesh/island/internal/auth"
	"github.com/island-mesh/island/internal/cli/helpers"
	"github.com/island-mesh/island/internal/config"
)

// NewTokenCmd creates the token command group for managing API tokens.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
		Long: `Manage the API tokens accepted by POST /api/auth.

A client exchanges its API token for a short-lived access token and sends that
as a bearer token. Tokens are only checked when auth.require is set.

Permissions:
  read  - Read reports, the island mode, PBA files and the plugin index
  write - Change the island mode, upload PBA files, signal agents, reset data
  admin - Full access`,
	}

	cmd.PersistentFlags().String(config.FlagDataDir, "", "Island data directory holding tokens.yaml")

	cmd.AddCommand(newTokenCreateCmd())
	cmd.AddCommand(newTokenListCmd())
	cmd.AddCommand(newTokenRevokeCmd())
	cmd.AddCommand(newTokenDeleteCmd())

	return cmd
}

func openStore(cmd *cobra.Command) (*auth.TokenStore, error) {
	cfg, _, err := helpers.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	store, err := auth.NewTokenStore(cfg.TokensPath(), helpers.NewLogger(cmd, cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}
	return store, nil
}

func parsePermissions(list string) ([]auth.Permission, error) {
	var perms []auth.Permission
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p := auth.ParsePermission(name)
		if p == "" {
			return nil, fmt.Errorf("unknown permission %q (valid: read, write, admin)", name)
		}
		perms = append(perms, p)
	}
	if len(perms) == 0 {
		return nil, fmt.Errorf("at least one permission is required")
	}
	return perms, nil
}

func newTokenCreateCmd() *cobra.Command {
	var (
		permissions string
		format      string
	)
	formats := []helpers.OutputFormat{helpers.FormatTable, helpers.FormatJSON, helpers.FormatYAML}

	cmd := &cobra.Command{
		Use:   "create <token-id>",
		Short: "Create a new API token",
		Long: `Create a new API token.

The token is displayed ONCE after creation. Save it securely, it cannot be
retrieved later.

Examples:
  island token create dashboard --permissions read
  island token create operator --permissions read,write`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			perms, err := parsePermissions(permissions)
			if err != nil {
				return err
			}
			store, err := openStore(cmd)
			if err != nil {
				return err
			}

			info, err := store.GenerateToken(args[0], perms)
			if err != nil {
				return err
			}

			if format != string(helpers.FormatTable) {
				return helpers.Print(cmd, format, formats, info)
			}
			cmd.Printf("✓ Created token %q\n\n", info.TokenID)
			cmd.Printf("  %s\n\n", info.Token)
			cmd.Println("Save this token now, it will not be shown again.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&permissions, "permissions", "p", string(auth.PermissionRead), "Comma separated permissions (read, write, admin)")
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, formats)

	return cmd
}

func newTokenListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}

			tokens := store.ListTokens()
			if len(tokens) == 0 && format == string(helpers.FormatTable) {
				cmd.Println("No tokens configured.")
				return nil
			}
			return helpers.Print(cmd, format, helpers.AllFormats, tokens)
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.AllFormats)
	return cmd
}

func newTokenRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <token-id>",
		Short: "Revoke an API token, keeping its record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			if err := store.RevokeToken(args[0]); err != nil {
				return err
			}
			cmd.Printf("✓ Revoked token %q\n", args[0])
			return nil
		},
	}
}

func newTokenDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <token-id>",
		Short: "Delete an API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			if err := store.DeleteToken(args[0]); err != nil {
				return err
			}
			cmd.Printf("✓ Deleted token %q\n", args[0])
			return nil
		},
	}
}
