// Package database provides DuckDB-backed island repositories.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/island-mesh/island/internal/constants"
	"github.com/island-mesh/island/internal/duckdb"
)

// Database wraps a DuckDB connection holding agents, machines, nodes, agent
// plugins, the agent configuration and simulation state. It implements every repository interface in
// internal/island/repository.
type Database struct {
	db       *sql.DB
	path     string
	readOnly bool
	logger   zerolog.Logger

	// ordinal records first-insertion order across all tables.
	ordinal atomic.Int64

	agents     *duckdb.Table[agentRow]
	machines   *duckdb.Table[machineRow]
	nodes      *duckdb.Table[nodeRow]
	simulation *duckdb.Table[simulationRow]
	plugins    *duckdb.Table[pluginRow]
	agentCfg   *duckdb.Table[agentConfigurationRow]
}

// New opens (creating if needed) the island database in dataDir.
func New(dataDir string, logger zerolog.Logger) (*Database, error) {
	return open(dataDir, logger, false)
}

// NewReadOnly opens an existing island database for offline reads.
// It can share the file with a running server.
func NewReadOnly(dataDir string, logger zerolog.Logger) (*Database, error) {
	return open(dataDir, logger, true)
}

// NewInMemory opens a throwaway database, used by tests and dry runs.
func NewInMemory(logger zerolog.Logger) (*Database, error) {
	return open("", logger, false)
}

func open(dataDir string, logger zerolog.Logger, readOnly bool) (*Database, error) {
	path := ""
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		path = filepath.Join(dataDir, constants.DefaultDatabaseFile)
	}

	db, err := duckdb.OpenDB(path, duckdb.Options{ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &Database{
		db:       db,
		path:     path,
		readOnly: readOnly,
		logger:   logger.With().Str("component", "database").Logger(),
	}

	if !readOnly {
		if err := d.initSchema(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	d.agents = duckdb.NewTable[agentRow](db, "agents").WithLogger(d.logger)
	d.machines = duckdb.NewTable[machineRow](db, "machines").WithLogger(d.logger)
	d.nodes = duckdb.NewTable[nodeRow](db, "nodes").WithLogger(d.logger)
	d.simulation = duckdb.NewTable[simulationRow](db, "simulation").WithLogger(d.logger)
	d.plugins = duckdb.NewTable[pluginRow](db, "agent_plugins").WithLogger(d.logger)
	d.agentCfg = duckdb.NewTable[agentConfigurationRow](db, "agent_configuration").WithLogger(d.logger)

	if !readOnly {
		if err := d.loadOrdinal(context.Background()); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	mode := "read-write"
	if readOnly {
		mode = "read-only"
	}
	location := path
	if location == "" {
		location = ":memory:"
	}
	d.logger.Info().
		Str("path", location).
		Str("mode", mode).
		Msg("Database initialized")

	return d, nil
}

// loadOrdinal resumes the insertion counter after the highest stored ordinal.
func (d *Database) loadOrdinal(ctx context.Context) error {
	var highest int64
	err := d.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(ordinal), 0) FROM (
			SELECT ordinal FROM agents
			UNION ALL SELECT ordinal FROM machines
			UNION ALL SELECT ordinal FROM nodes
			UNION ALL SELECT ordinal FROM agent_plugins
		)`).Scan(&highest)
	if err != nil {
		return fmt.Errorf("failed to load insertion order: %w", err)
	}
	d.ordinal.Store(highest)
	return nil
}

func (d *Database) nextOrdinal() int64 {
	return d.ordinal.Add(1)
}

// Close closes the database connection.
func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	d.logger.Info().Str("path", d.path).Msg("Database closed")
	return nil
}

// Ping checks that the connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// DB returns the underlying connection.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Path returns the database file path, empty for in-memory databases.
func (d *Database) Path() string {
	return d.path
}

// ReadOnly reports whether the database was opened read-only.
func (d *Database) ReadOnly() bool {
	return d.readOnly
}
