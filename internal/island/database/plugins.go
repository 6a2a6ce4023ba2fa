package database

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/models"
)

type pluginRow struct {
	ID            string `duckdb:"id,pk"`
	Ordinal       int64  `duckdb:"ordinal,immutable"`
	HostOS        string `duckdb:"host_os"`
	PluginType    string `duckdb:"plugin_type"`
	Name          string `duckdb:"name"`
	Version       string `duckdb:"version"`
	Manifest      string `duckdb:"manifest"`
	ConfigSchema  string `duckdb:"config_schema"`
	SourceArchive []byte `duckdb:"source_archive"`
}

func pluginID(os models.OperatingSystem, pluginType models.AgentPluginType, name string) string {
	return string(os) + "/" + string(pluginType) + "/" + name
}

func (r *pluginRow) model() (models.AgentPlugin, error) {
	p := models.AgentPlugin{
		HostOperatingSystem: models.OperatingSystem(r.HostOS),
		SourceArchive:       r.SourceArchive,
	}
	if err := json.Unmarshal([]byte(r.Manifest), &p.Manifest); err != nil {
		return models.AgentPlugin{}, fmt.Errorf("plugin %s manifest: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.ConfigSchema), &p.ConfigSchema); err != nil {
		return models.AgentPlugin{}, fmt.Errorf("plugin %s config schema: %w", r.ID, err)
	}
	return p, nil
}

func newPluginRow(p models.AgentPlugin, ordinal int64) (*pluginRow, error) {
	manifest, err := json.Marshal(p.Manifest)
	if err != nil {
		return nil, err
	}
	schema := p.ConfigSchema
	if schema == nil {
		schema = map[string]any{}
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	archive := p.SourceArchive
	if archive == nil {
		archive = []byte{}
	}
	return &pluginRow{
		ID:            pluginID(p.HostOperatingSystem, p.Manifest.PluginType, p.Manifest.Name),
		Ordinal:       ordinal,
		HostOS:        string(p.HostOperatingSystem),
		PluginType:    string(p.Manifest.PluginType),
		Name:          p.Manifest.Name,
		Version:       p.Manifest.Version,
		Manifest:      string(manifest),
		ConfigSchema:  string(schemaJSON),
		SourceArchive: archive,
	}, nil
}

// GetAgentPlugin returns the build of a plugin for os.
func (d *Database) GetAgentPlugin(ctx context.Context, os models.OperatingSystem, pluginType models.AgentPluginType, name string) (models.AgentPlugin, error) {
	row, err := d.plugins.Get(ctx, pluginID(os, pluginType, name))
	if stderrors.Is(err, sql.ErrNoRows) {
		return models.AgentPlugin{}, errors.NotFound("database.GetAgentPlugin",
			"%s plugin %s for %s is not installed", pluginType, name, os)
	}
	if err != nil {
		return models.AgentPlugin{}, fmt.Errorf("failed to get agent plugin: %w", err)
	}
	return row.model()
}

// GetAgentPlugins returns every installed plugin build in installation order.
func (d *Database) GetAgentPlugins(ctx context.Context) ([]models.AgentPlugin, error) {
	rows, err := d.plugins.List(ctx, orderByInsertion)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent plugins: %w", err)
	}
	out := make([]models.AgentPlugin, 0, len(rows))
	for _, row := range rows {
		p, err := row.model()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ReplaceAgentPlugin removes every build of a plugin and stores plugins in
// one transaction.
func (d *Database) ReplaceAgentPlugin(ctx context.Context, pluginType models.AgentPluginType, name string, plugins []models.AgentPlugin) error {
	rows := make([]*pluginRow, 0, len(plugins))
	for _, p := range plugins {
		if p.Manifest.PluginType != pluginType || p.Manifest.Name != name {
			return errors.InvalidValue("database.ReplaceAgentPlugin",
				"plugin %s %s cannot replace %s %s", p.Manifest.PluginType, p.Manifest.Name, pluginType, name)
		}
		row, err := newPluginRow(p, d.nextOrdinal())
		if err != nil {
			return fmt.Errorf("failed to encode plugin %s: %w", name, err)
		}
		rows = append(rows, row)
	}

	return d.inTx(ctx, func(tx *sql.Tx) error {
		table := d.plugins.WithExecer(tx)
		for _, os := range models.OperatingSystems {
			if err := table.Delete(ctx, pluginID(os, pluginType, name)); err != nil {
				return fmt.Errorf("failed to remove agent plugin: %w", err)
			}
		}
		for _, row := range rows {
			if err := table.Upsert(ctx, row); err != nil {
				return fmt.Errorf("failed to store agent plugin: %w", err)
			}
		}
		return nil
	})
}

// RemoveAgentPlugin removes every build of a plugin. Removing a plugin that
// is not installed is not an error.
func (d *Database) RemoveAgentPlugin(ctx context.Context, pluginType models.AgentPluginType, name string) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		table := d.plugins.WithExecer(tx)
		for _, os := range models.OperatingSystems {
			if err := table.Delete(ctx, pluginID(os, pluginType, name)); err != nil {
				return fmt.Errorf("failed to remove agent plugin: %w", err)
			}
		}
		return nil
	})
}

// inTx runs fn in a transaction committed when fn succeeds.
func (d *Database) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer errors.DeferRollback(d.logger, tx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
