package database

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/island-mesh/island/internal/island/models"
)

const agentConfigurationRowID = 1

type agentConfigurationRow struct {
	ID       int64  `duckdb:"id,pk"`
	Document string `duckdb:"document"`
}

// GetAgentConfiguration returns the stored agent configuration, or the
// default one if none was stored.
func (d *Database) GetAgentConfiguration(ctx context.Context) (models.AgentConfiguration, error) {
	row, err := d.agentCfg.Get(ctx, int64(agentConfigurationRowID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return models.DefaultAgentConfiguration(), nil
	}
	if err != nil {
		return models.AgentConfiguration{}, fmt.Errorf("failed to load agent configuration: %w", err)
	}

	var cfg models.AgentConfiguration
	if err := json.Unmarshal([]byte(row.Document), &cfg); err != nil {
		return models.AgentConfiguration{}, fmt.Errorf("failed to decode agent configuration: %w", err)
	}
	return cfg, nil
}

// SetAgentConfiguration stores cfg.
func (d *Database) SetAgentConfiguration(ctx context.Context, cfg models.AgentConfiguration) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode agent configuration: %w", err)
	}
	if err := d.agentCfg.Upsert(ctx, &agentConfigurationRow{ID: agentConfigurationRowID, Document: string(doc)}); err != nil {
		return fmt.Errorf("failed to store agent configuration: %w", err)
	}
	return nil
}
