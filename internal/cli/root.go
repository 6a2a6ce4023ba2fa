// Package cli assembles the island command tree.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	configcmd "github.com/island-mesh/island/internal/cli/config"
	"github.com/island-mesh/island/internal/cli/mode"
	"github.com/island-mesh/island/internal/cli/report"
	"github.com/island-mesh/island/internal/cli/serve"
	"github.com/island-mesh/island/internal/cli/token"
	"github.com/island-mesh/island/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "island",
	Short: "Island - command and control server for breach and attack simulation agents",
	Long: `The island collects what agents report about the network they explore and
turns it into a reachability report.

Key capabilities:
- Report: which machines were scanned, and from where
- Run times: when the first agent started and the last one stopped
- Mode: switch the island between unset, ransomware and advanced
- Agent control: tell running agents to stop
- Post-breach actions: upload custom files agents run after a breach`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serve.NewServeCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(report.NewReportCmd())
	rootCmd.AddCommand(mode.NewModeCmd())
	rootCmd.AddCommand(token.NewTokenCmd())
	rootCmd.AddCommand(configcmd.NewConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("Island version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
