package testutil

import (
	"context"
	"net/netip"
	"testing"

	"github.com/google/uuid"

	"github.com/island-mesh/island/internal/island/models"
	"github.com/island-mesh/island/internal/island/repository"
)

// Report fixture: the island (99) scanned machine 1, machine 1 scanned and
// exploited machine 2, and machine 3 only talks back to the island.
var (
	IslandMachine = models.Machine{
		ID:                99,
		Island:            true,
		Hostname:          "Island",
		HardwareID:        5,
		NetworkInterfaces: []netip.Prefix{netip.MustParsePrefix("10.10.10.99/24")},
	}
	Machine1 = models.Machine{
		ID:                1,
		HardwareID:        9,
		Hostname:          "machine_1",
		NetworkInterfaces: []netip.Prefix{netip.MustParsePrefix("10.10.10.1/24")},
	}
	Machine2 = models.Machine{
		ID:                2,
		HardwareID:        9,
		NetworkInterfaces: []netip.Prefix{netip.MustParsePrefix("10.10.10.2/24")},
	}
	Machine3 = models.Machine{
		ID:                3,
		HardwareID:        9,
		NetworkInterfaces: []netip.Prefix{netip.MustParsePrefix("10.10.10.3/24")},
	}
)

// ReportMachines returns the fixture machines in repository order.
func ReportMachines() []models.Machine {
	return []models.Machine{Machine1.Clone(), Machine2.Clone(), Machine3.Clone(), IslandMachine.Clone()}
}

// ReportNodes returns the fixture nodes in repository order.
func ReportNodes() []models.Node {
	return []models.Node{
		{
			MachineID: 1,
			Connections: map[string]models.CommunicationTypes{
				"2": models.NewCommunicationTypes(models.CommunicationExploited, models.CommunicationScanned),
			},
		},
		{
			MachineID: 99,
			Connections: map[string]models.CommunicationTypes{
				"1": models.NewCommunicationTypes(models.CommunicationScanned),
			},
		},
		{
			MachineID: 3,
			Connections: map[string]models.CommunicationTypes{
				"99": models.NewCommunicationTypes(models.CommunicationCC, models.CommunicationExploited),
			},
		},
	}
}

// ReportAgents returns agents started at 100..601; the last one is still running.
func ReportAgents() []models.Agent {
	cc := models.SocketAddress{IP: netip.MustParseAddr("127.0.0.1"), Port: 5000}
	agent := func(id string, machine int, start int64, stop *int64) models.Agent {
		return models.Agent{
			ID:        uuid.MustParse(id),
			MachineID: machine,
			StartTime: start,
			StopTime:  stop,
			CCServer:  cc,
		}
	}
	return []models.Agent{
		agent("2d56f972-78a8-4026-9f47-2dfd550ee207", 1, 100, Int64(500)),
		agent("65c641f2-af47-4a42-929b-109b30f0d8d6", 2, 200, Int64(600)),
		agent("290da3c3-f410-4f5e-a472-b04416860a2c", 3, 300, Int64(700)),
		agent("e5cd334a-5ca5-4f19-a2ab-a68d515fea46", 1, 600, Int64(40003)),
		agent("10e603df-609f-42c6-af08-59c63e82b873", 2, 601, nil),
	}
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}

// SeedReport loads the report fixture into the given repositories.
func SeedReport(t *testing.T, agents repository.AgentRepository, machines repository.MachineRepository, nodes repository.NodeRepository) {
	t.Helper()
	ctx := context.Background()

	for _, m := range ReportMachines() {
		if err := machines.UpsertMachine(ctx, m); err != nil {
			t.Fatalf("seed machine %d: %v", m.ID, err)
		}
	}
	for _, n := range ReportNodes() {
		if err := nodes.UpsertNode(ctx, n); err != nil {
			t.Fatalf("seed node %d: %v", n.MachineID, err)
		}
	}
	for _, a := range ReportAgents() {
		if err := agents.UpsertAgent(ctx, a); err != nil {
			t.Fatalf("seed agent %s: %v", a.ID, err)
		}
	}
}

// MemoryRepositories bundles in-memory stores for service tests.
type MemoryRepositories struct {
	Agents     *repository.MemoryAgentRepository
	Machines   *repository.MemoryMachineRepository
	Nodes      *repository.MemoryNodeRepository
	Simulation *repository.MemorySimulationRepository
	Plugins    *repository.MemoryAgentPluginRepository
	AgentCfg   *repository.MemoryAgentConfigurationRepository
}

// NewMemoryRepositories creates empty in-memory stores in unset mode.
func NewMemoryRepositories() *MemoryRepositories {
	return &MemoryRepositories{
		Agents:     repository.NewMemoryAgentRepository(),
		Machines:   repository.NewMemoryMachineRepository(),
		Nodes:      repository.NewMemoryNodeRepository(),
		Simulation: repository.NewMemorySimulationRepository(models.ModeUnset),
		Plugins:    repository.NewMemoryAgentPluginRepository(),
		AgentCfg:   repository.NewMemoryAgentConfigurationRepository(),
	}
}

// NewSeededRepositories creates in-memory stores loaded with the report fixture.
func NewSeededRepositories(t *testing.T) *MemoryRepositories {
	t.Helper()
	repos := NewMemoryRepositories()
	SeedReport(t, repos.Agents, repos.Machines, repos.Nodes)
	return repos
}
