package database

import (
	"fmt"

	"github.com/island-mesh/island/internal/errors"
)

// initSchema creates every table. Statements are idempotent so this runs on each open.
func (d *Database) initSchema() error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer errors.DeferRollback(d.logger, tx)

	for _, ddl := range schemaDDL {
		if _, err := tx.Exec(ddl); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

var schemaDDL = []string{
	// Agents launched during the run. stop_time is NULL while the agent runs.
	`CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		ordinal BIGINT NOT NULL,
		machine_id BIGINT NOT NULL,
		start_time BIGINT NOT NULL,
		stop_time BIGINT,
		parent_id TEXT,
		cc_server TEXT NOT NULL
	)`,

	// Machines discovered by agents, plus the island itself.
	// network_interfaces and services hold JSON documents.
	`CREATE TABLE IF NOT EXISTS machines (
		id BIGINT PRIMARY KEY,
		ordinal BIGINT NOT NULL,
		island BOOLEAN NOT NULL DEFAULT false,
		hardware_id BIGINT NOT NULL DEFAULT 0,
		hostname TEXT NOT NULL DEFAULT '',
		domain_name TEXT NOT NULL DEFAULT '',
		network_interfaces TEXT NOT NULL DEFAULT '[]',
		services TEXT NOT NULL DEFAULT '{}'
	)`,

	// Outbound connections per source machine, keyed by target machine id.
	`CREATE TABLE IF NOT EXISTS nodes (
		machine_id BIGINT PRIMARY KEY,
		ordinal BIGINT NOT NULL,
		connections TEXT NOT NULL DEFAULT '{}',
		tcp_connections TEXT NOT NULL DEFAULT '{}'
	)`,

	// Installed agent plugins, one row per host operating system.
	// id is "<os>/<plugin_type>/<name>".
	`CREATE TABLE IF NOT EXISTS agent_plugins (
		id TEXT PRIMARY KEY,
		ordinal BIGINT NOT NULL,
		host_os TEXT NOT NULL,
		plugin_type TEXT NOT NULL,
		name TEXT NOT NULL,
		version TEXT NOT NULL,
		manifest TEXT NOT NULL,
		config_schema TEXT NOT NULL DEFAULT '{}',
		source_archive BLOB NOT NULL
	)`,

	// Single-row agent configuration document.
	`CREATE TABLE IF NOT EXISTS agent_configuration (
		id INTEGER PRIMARY KEY,
		document TEXT NOT NULL
	)`,

	// Single-row island state.
	`CREATE TABLE IF NOT EXISTS simulation (
		id INTEGER PRIMARY KEY,
		mode TEXT NOT NULL,
		terminate_signal TIMESTAMP
	)`,
}
