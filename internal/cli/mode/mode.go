// Package mode implements the 'island mode' commands against a running island.
package mode

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/island-mesh/island/internal/cli/helpers"
	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/client"
	"github.com/island-mesh/island/internal/island/models"
)

// TokenEnv holds the API token used when --token is unset.
const TokenEnv = "ISLAND_API_TOKEN"

type options struct {
	server    string
	token     string
	verifyTLS bool
}

// NewModeCmd creates the mode command group.
func NewModeCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Read or change the mode of a running island",
	}

	cmd.PersistentFlags().StringVarP(&opts.server, "server", "s", "", "Island address as host:port (defaults to ISLAND_SERVER or the configured port on localhost)")
	cmd.PersistentFlags().StringVar(&opts.token, "token", "", "API token, exchanged for an access token (defaults to "+TokenEnv+")")
	cmd.PersistentFlags().BoolVar(&opts.verifyTLS, "verify-tls", false, "Verify the island certificate")

	cmd.AddCommand(newGetCmd(opts))
	cmd.AddCommand(newSetCmd(opts))

	return cmd
}

// connect returns a client connected, and authenticated when a token is known.
func connect(ctx context.Context, cmd *cobra.Command, opts *options) (*client.HTTPIslandAPIClient, error) {
	cfg, _, err := helpers.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}

	c := client.New(opts.verifyTLS, helpers.NewLogger(cmd, cfg))
	server := helpers.ResolveServer(opts.server, cfg)
	if err := c.Connect(ctx, server); err != nil {
		return nil, explain(err)
	}

	token := opts.token
	if token == "" {
		token = os.Getenv(TokenEnv)
	}
	if token != "" {
		if err := c.Authenticate(ctx, token); err != nil {
			return nil, explain(err)
		}
	}
	return c, nil
}

// explain adds a hint for the failures a user can act on.
func explain(err error) error {
	switch errors.KindOf(err) {
	case errors.KindTransportConnection:
		return fmt.Errorf("%w\n\nIs the island running? Start it with 'island serve'", err)
	case errors.KindTransportTimeout:
		return fmt.Errorf("%w\n\nThe island did not answer in time", err)
	default:
		return err
	}
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the island mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			mode, err := c.GetIslandMode(cmd.Context())
			if err != nil {
				return explain(err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), mode)
			return err
		},
	}
}

func newSetCmd(opts *options) *cobra.Command {
	names := make([]string, len(models.IslandModes))
	for i, m := range models.IslandModes {
		names[i] = string(m)
	}

	return &cobra.Command{
		Use:       "set <" + strings.Join(names, "|") + ">",
		Short:     "Change the island mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := models.ParseIslandMode(args[0])
			if err != nil {
				return err
			}
			c, err := connect(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			if err := c.SetIslandMode(cmd.Context(), mode); err != nil {
				return explain(err)
			}
			cmd.Printf("✓ Island mode set to %s\n", mode)
			return nil
		},
	}
}
