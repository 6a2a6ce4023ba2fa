package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/models"
)

type agentRow struct {
	ID        string  `duckdb:"id,pk"`
	Ordinal   int64   `duckdb:"ordinal,immutable"`
	MachineID int64   `duckdb:"machine_id"`
	StartTime int64   `duckdb:"start_time"`
	StopTime  *int64  `duckdb:"stop_time"`
	ParentID  *string `duckdb:"parent_id"`
	CCServer  string  `duckdb:"cc_server"`
}

func (r *agentRow) model() (models.Agent, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return models.Agent{}, fmt.Errorf("agent %q: %w", r.ID, err)
	}

	agent := models.Agent{
		ID:        id,
		MachineID: int(r.MachineID),
		StartTime: r.StartTime,
		StopTime:  r.StopTime,
	}
	if r.ParentID != nil {
		parent, err := uuid.Parse(*r.ParentID)
		if err != nil {
			return models.Agent{}, fmt.Errorf("agent %q parent: %w", r.ID, err)
		}
		agent.ParentID = &parent
	}
	if err := agent.CCServer.UnmarshalText([]byte(r.CCServer)); err != nil {
		return models.Agent{}, fmt.Errorf("agent %q cc server: %w", r.ID, err)
	}
	return agent, nil
}

// GetAgents returns every agent in insertion order.
func (d *Database) GetAgents(ctx context.Context) ([]models.Agent, error) {
	rows, err := d.agents.List(ctx, orderByInsertion)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	out := make([]models.Agent, 0, len(rows))
	for _, row := range rows {
		agent, err := row.model()
		if err != nil {
			return nil, err
		}
		out = append(out, agent)
	}
	return out, nil
}

// GetAgentByID returns one agent or a NotFound error.
func (d *Database) GetAgentByID(ctx context.Context, id uuid.UUID) (models.Agent, error) {
	row, err := d.agents.Get(ctx, id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return models.Agent{}, errors.NotFound("database.GetAgentByID", "agent %s not found", id)
	}
	if err != nil {
		return models.Agent{}, fmt.Errorf("failed to get agent: %w", err)
	}
	return row.model()
}

// UpsertAgent inserts or updates an agent, keeping its original position.
func (d *Database) UpsertAgent(ctx context.Context, agent models.Agent) error {
	if agent.ID == uuid.Nil {
		return errors.InvalidValue("database.UpsertAgent", "agent id cannot be empty")
	}

	row := &agentRow{
		ID:        agent.ID.String(),
		Ordinal:   d.nextOrdinal(),
		MachineID: int64(agent.MachineID),
		StartTime: agent.StartTime,
		StopTime:  agent.StopTime,
	}
	if agent.ParentID != nil {
		parent := agent.ParentID.String()
		row.ParentID = &parent
	}
	cc, _ := agent.CCServer.MarshalText()
	row.CCServer = string(cc)

	if err := d.agents.Upsert(ctx, row); err != nil {
		return fmt.Errorf("failed to upsert agent: %w", err)
	}
	return nil
}

// ResetAgents removes every agent.
func (d *Database) ResetAgents(ctx context.Context) error {
	if err := d.agents.DeleteWhere(ctx, nil); err != nil {
		return fmt.Errorf("failed to reset agents: %w", err)
	}
	return nil
}
