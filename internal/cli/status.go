package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/island-mesh/island/internal/cli/helpers"
	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/client"
	"github.com/island-mesh/island/internal/island/models"
)

// statusTimeout bounds the liveness check.
const statusTimeout = 5 * time.Second

// islandStatus is what 'island status' reports.
type islandStatus struct {
	ConfigFile string            `header:"CONFIG" json:"config_file" yaml:"config_file"`
	DataDir    string            `header:"DATA DIR" json:"data_dir" yaml:"data_dir"`
	Server     string            `header:"SERVER" json:"server" yaml:"server"`
	Status     string            `header:"STATUS" json:"status" yaml:"status"`
	Mode       models.IslandMode `header:"MODE" json:"mode,omitempty" yaml:"mode,omitempty"`
}

// newStatusCmd creates the status command.
func newStatusCmd() *cobra.Command {
	var (
		format string
		server string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show where the island keeps its data and whether it is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loader, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}

			st := islandStatus{
				ConfigFile: loader.ConfigPath(),
				DataDir:    cfg.DataDir,
				Server:     helpers.ResolveServer(server, cfg),
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
			defer cancel()
			checkIsland(ctx, client.New(false, helpers.NewLogger(cmd, cfg)), &st)

			return helpers.Print(cmd, format, helpers.AllFormats, []islandStatus{st})
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.AllFormats)
	cmd.Flags().StringVarP(&server, "server", "s", "", "Island address as host:port")

	return cmd
}

// islandChecker is the part of the island client status needs.
type islandChecker interface {
	Connect(ctx context.Context, server string) error
	GetIslandMode(ctx context.Context) (models.IslandMode, error)
}

func checkIsland(ctx context.Context, c islandChecker, st *islandStatus) {
	err := c.Connect(ctx, st.Server)
	switch {
	case err == nil:
		st.Status = "running"
	case errors.KindOf(err) == errors.KindTransportConnection:
		st.Status = "stopped"
		return
	case errors.KindOf(err) == errors.KindTransportTimeout:
		st.Status = "not responding"
		return
	default:
		st.Status = "error"
		return
	}

	// The mode route needs auth when the island requires it.
	if mode, err := c.GetIslandMode(ctx); err == nil {
		st.Mode = mode
	}
}
