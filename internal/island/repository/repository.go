// Package repository defines the island's record stores and in-memory implementations.
//
// Stores are safe for concurrent use and return copies of their records. Listing
// preserves insertion order: the first upsert of a key fixes its position.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/island-mesh/island/internal/island/models"
)

// AgentRepository stores agents.
type AgentRepository interface {
	GetAgents(ctx context.Context) ([]models.Agent, error)
	GetAgentByID(ctx context.Context, id uuid.UUID) (models.Agent, error)
	UpsertAgent(ctx context.Context, agent models.Agent) error
	ResetAgents(ctx context.Context) error
}

// MachineRepository stores machines.
type MachineRepository interface {
	GetMachines(ctx context.Context) ([]models.Machine, error)
	GetMachineByID(ctx context.Context, id int) (models.Machine, error)
	UpsertMachine(ctx context.Context, machine models.Machine) error
	// ResetMachines removes every machine except the island.
	ResetMachines(ctx context.Context) error
}

// NodeRepository stores per-machine outbound connections.
type NodeRepository interface {
	GetNodes(ctx context.Context) ([]models.Node, error)
	UpsertNode(ctx context.Context, node models.Node) error
	ResetNodes(ctx context.Context) error
}

// SimulationRepository stores island-wide run state.
type SimulationRepository interface {
	GetMode(ctx context.Context) (models.IslandMode, error)
	SetMode(ctx context.Context, mode models.IslandMode) error
	// GetTerminateSignal returns the time of the last terminate-all request, if any.
	GetTerminateSignal(ctx context.Context) (time.Time, bool, error)
	SetTerminateSignal(ctx context.Context, at time.Time) error
	ClearTerminateSignal(ctx context.Context) error
}

// AgentPluginRepository stores installed agent plugins, one record per host
// operating system.
type AgentPluginRepository interface {
	GetAgentPlugin(ctx context.Context, os models.OperatingSystem, pluginType models.AgentPluginType, name string) (models.AgentPlugin, error)
	GetAgentPlugins(ctx context.Context) ([]models.AgentPlugin, error)
	// ReplaceAgentPlugin atomically swaps every platform build of a plugin for plugins.
	ReplaceAgentPlugin(ctx context.Context, pluginType models.AgentPluginType, name string, plugins []models.AgentPlugin) error
	RemoveAgentPlugin(ctx context.Context, pluginType models.AgentPluginType, name string) error
}

// AgentConfigurationRepository stores the agent configuration.
type AgentConfigurationRepository interface {
	// GetAgentConfiguration returns the default configuration until one is stored.
	GetAgentConfiguration(ctx context.Context) (models.AgentConfiguration, error)
	SetAgentConfiguration(ctx context.Context, cfg models.AgentConfiguration) error
}
