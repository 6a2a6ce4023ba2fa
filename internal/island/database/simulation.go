package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/island-mesh/island/internal/island/models"
	"github.com/island-mesh/island/internal/island/repository"
)

const simulationRowID = 1

type simulationRow struct {
	ID              int64      `duckdb:"id,pk"`
	Mode            string     `duckdb:"mode"`
	TerminateSignal *time.Time `duckdb:"terminate_signal"`
}

func (d *Database) loadSimulation(ctx context.Context) (*simulationRow, error) {
	row, err := d.simulation.Get(ctx, int64(simulationRowID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return &simulationRow{ID: simulationRowID, Mode: string(models.ModeUnset)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load simulation state: %w", err)
	}
	return row, nil
}

// GetMode returns the stored island mode, unset if none was stored.
func (d *Database) GetMode(ctx context.Context) (models.IslandMode, error) {
	row, err := d.loadSimulation(ctx)
	if err != nil {
		return "", err
	}
	return models.ParseIslandMode(row.Mode)
}

// SetMode stores the island mode.
func (d *Database) SetMode(ctx context.Context, mode models.IslandMode) error {
	row, err := d.loadSimulation(ctx)
	if err != nil {
		return err
	}
	row.Mode = string(mode)
	if err := d.simulation.Upsert(ctx, row); err != nil {
		return fmt.Errorf("failed to store island mode: %w", err)
	}
	return nil
}

// GetTerminateSignal returns the time of the last terminate-all request.
func (d *Database) GetTerminateSignal(ctx context.Context) (time.Time, bool, error) {
	row, err := d.loadSimulation(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	if row.TerminateSignal == nil {
		return time.Time{}, false, nil
	}
	return row.TerminateSignal.UTC(), true, nil
}

// SetTerminateSignal records a terminate-all request.
func (d *Database) SetTerminateSignal(ctx context.Context, at time.Time) error {
	return d.storeTerminateSignal(ctx, &at)
}

// ClearTerminateSignal forgets any terminate-all request.
func (d *Database) ClearTerminateSignal(ctx context.Context) error {
	return d.storeTerminateSignal(ctx, nil)
}

func (d *Database) storeTerminateSignal(ctx context.Context, at *time.Time) error {
	row, err := d.loadSimulation(ctx)
	if err != nil {
		return err
	}
	if at != nil {
		utc := at.UTC()
		at = &utc
	}
	row.TerminateSignal = at
	if err := d.simulation.Upsert(ctx, row); err != nil {
		return fmt.Errorf("failed to store terminate signal: %w", err)
	}
	return nil
}

// ClearSimulationData removes every agent, node and non-island machine in one
// transaction.
func (d *Database) ClearSimulationData(ctx context.Context) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		if err := d.agents.WithExecer(tx).DeleteWhere(ctx, nil); err != nil {
			return fmt.Errorf("failed to reset agents: %w", err)
		}
		if err := d.nodes.WithExecer(tx).DeleteWhere(ctx, nil); err != nil {
			return fmt.Errorf("failed to reset nodes: %w", err)
		}
		if err := d.machines.WithExecer(tx).DeleteWhere(ctx, map[string]any{"island": false}); err != nil {
			return fmt.Errorf("failed to reset machines: %w", err)
		}
		return nil
	})
}

var (
	_ repository.AgentRepository      = (*Database)(nil)
	_ repository.MachineRepository    = (*Database)(nil)
	_ repository.NodeRepository       = (*Database)(nil)
	_ repository.SimulationRepository = (*Database)(nil)

	_ repository.AgentPluginRepository        = (*Database)(nil)
	_ repository.AgentConfigurationRepository = (*Database)(nil)
)
