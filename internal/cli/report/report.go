// Package report implements the 'island report' commands, which read the
// island database directly.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/island-mesh/island/internal/cli/helpers"
	"github.com/island-mesh/island/internal/config"
	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/database"
	"github.com/island-mesh/island/internal/island/reporting"
)

// NewReportCmd creates the report command group.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the island report from the database",
		Long: `Print the island report straight from the database file.

The database is opened read-only, so the commands work next to a running
island and without one.`,
	}

	cmd.PersistentFlags().String(config.FlagDataDir, "", "Island data directory holding the database")

	cmd.AddCommand(newScannedCmd())
	cmd.AddCommand(newTimesCmd())
	cmd.AddCommand(newSummaryCmd())

	return cmd
}

// withService opens the database read-only and runs fn with a report service.
func withService(cmd *cobra.Command, fn func(*reporting.Service) error) error {
	cfg, _, err := helpers.LoadConfig(cmd)
	if err != nil {
		return err
	}
	logger := helpers.NewLogger(cmd, cfg)

	db, err := database.NewReadOnly(cfg.DataDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open island database in %s: %w", cfg.DataDir, err)
	}
	defer errors.DeferClose(logger, db, "failed to close database")

	return fn(reporting.NewService(db, db, db, logger))
}

// scannedRow is one table line of the scanned machines report.
type scannedRow struct {
	Hostname   string   `header:"HOSTNAME"`
	IPs        []string `header:"IP ADDRESSES"`
	From       []string `header:"ACCESSIBLE FROM"`
	Services   []string `header:"SERVICES"`
	DomainName string   `header:"DOMAIN"`
}

func newScannedCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "scanned",
		Short: "List the machines reached during the run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *reporting.Service) error {
				scanned, err := svc.GetScanned(cmd.Context())
				if err != nil {
					return err
				}

				if format != string(helpers.FormatTable) && format != string(helpers.FormatCSV) {
					return helpers.Print(cmd, format, helpers.AllFormats, scanned)
				}
				if len(scanned) == 0 {
					cmd.Println("No machines scanned yet.")
					return nil
				}
				return helpers.Print(cmd, format, helpers.AllFormats, scannedRows(scanned))
			})
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.AllFormats)
	return cmd
}

func scannedRows(scanned []reporting.ScannedMachine) []scannedRow {
	rows := make([]scannedRow, len(scanned))
	for i, m := range scanned {
		from := make([]string, len(m.AccessibleFromNodes))
		for j, src := range m.AccessibleFromNodes {
			from[j] = src.Hostname
			if from[j] == "" {
				from[j] = strings.Join(src.IPAddresses, "/")
			}
		}
		rows[i] = scannedRow{
			Hostname:   m.Hostname,
			IPs:        m.IPAddresses,
			From:       from,
			Services:   m.Services,
			DomainName: m.DomainName,
		}
	}
	return rows
}

// timesRow is the table form of the run's time bounds.
type timesRow struct {
	FirstAgentStart *time.Time `header:"FIRST AGENT START" json:"first_agent_start" yaml:"first_agent_start"`
	LastAgentStop   *time.Time `header:"LAST AGENT STOP" json:"last_agent_stop" yaml:"last_agent_stop"`
	AgentsRunning   bool       `header:"AGENTS RUNNING" json:"agents_running" yaml:"agents_running"`
}

func newTimesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "times",
		Short: "Show when the first agent started and the last one stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *reporting.Service) error {
				times, err := loadTimes(cmd, svc)
				if err != nil {
					return err
				}
				return helpers.Print(cmd, format, helpers.AllFormats, []timesRow{times})
			})
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.AllFormats)
	return cmd
}

func loadTimes(cmd *cobra.Command, svc *reporting.Service) (timesRow, error) {
	var row timesRow

	first, err := svc.GetFirstAgentTime(cmd.Context())
	if errors.KindOf(err) == errors.KindNotFound {
		return row, nil
	}
	if err != nil {
		return row, err
	}
	row.FirstAgentStart = &first

	last, err := svc.GetLastAgentDeadTime(cmd.Context())
	if err != nil {
		return row, err
	}
	if last.Known {
		row.LastAgentStop = &last.Time
	}
	row.AgentsRunning = last.AgentsRunning
	return row, nil
}

// summaryRow is the table form of reporting.Summary.
type summaryRow struct {
	Agents    int `header:"AGENTS"`
	Machines  int `header:"MACHINES"`
	Scanned   int `header:"SCANNED"`
	Exploited int `header:"EXPLOITED"`
}

func newSummaryCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count agents, machines, scanned and exploited machines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *reporting.Service) error {
				summary, err := svc.GetSummary(cmd.Context())
				if err != nil {
					return err
				}
				if format != string(helpers.FormatTable) && format != string(helpers.FormatCSV) {
					return helpers.Print(cmd, format, helpers.AllFormats, summary)
				}
				return helpers.Print(cmd, format, helpers.AllFormats, []summaryRow{{
					Agents:    summary.Agents,
					Machines:  summary.Machines,
					Scanned:   summary.Scanned,
					Exploited: summary.Exploited,
				}})
			})
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, helpers.AllFormats)
	return cmd
}
