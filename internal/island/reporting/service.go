// Package reporting turns agent, machine and node records into the island's
// reachability report and run time summaries.
//
// The service reads a point-in-time view of its repositories on every call and
// keeps no state of its own. Concurrent ingestion may be observed half-applied.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/models"
	"github.com/island-mesh/island/internal/island/topology"
)

// AgentLister lists every agent of the run.
type AgentLister interface {
	GetAgents(ctx context.Context) ([]models.Agent, error)
}

// MachineReader reads machines.
type MachineReader interface {
	GetMachines(ctx context.Context) ([]models.Machine, error)
	GetMachineByID(ctx context.Context, id int) (models.Machine, error)
}

// NodeLister lists every node.
type NodeLister interface {
	GetNodes(ctx context.Context) ([]models.Node, error)
}

// ScannedMachine is one entry of the reachability report.
type ScannedMachine struct {
	Hostname            string                 `json:"hostname"`
	IPAddresses         []string               `json:"ip_addresses"`
	AccessibleFromNodes []models.SimpleMachine `json:"accessible_from_nodes"`
	Services            []string               `json:"services"`
	DomainName          string                 `json:"domain_name"`
}

// LastDeadTime is the latest stop time among agents that have stopped.
type LastDeadTime struct {
	// Time is meaningful only when Known is true.
	Time time.Time `json:"time"`
	// Known is false while no agent has stopped yet.
	Known bool `json:"known"`
	// AgentsRunning is true while at least one agent has no stop time.
	AgentsRunning bool `json:"agents_running"`
}

// Service produces reports from the island repositories.
type Service struct {
	agents   AgentLister
	machines MachineReader
	nodes    NodeLister
	logger   zerolog.Logger
}

// NewService creates a reporting service.
func NewService(agents AgentLister, machines MachineReader, nodes NodeLister, logger zerolog.Logger) *Service {
	return &Service{
		agents:   agents,
		machines: machines,
		nodes:    nodes,
		logger:   logger.With().Str("component", "reporting").Logger(),
	}
}

// snapshot is one reporting cycle's view of machines and connections.
type snapshot struct {
	machines []models.Machine
	byID     map[int]models.Machine
	island   models.Machine
	resolver *topology.Resolver
}

func (s *Service) snapshot(ctx context.Context, op string) (*snapshot, error) {
	machines, err := s.machines.GetMachines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get machines: %w", err)
	}
	nodes, err := s.nodes.GetNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get nodes: %w", err)
	}

	island, err := findIsland(op, machines)
	if err != nil {
		return nil, err
	}

	resolver, err := topology.NewResolver(nodes)
	if err != nil {
		return nil, errors.E(errors.KindConfiguration, op, "stored node connections are inconsistent", err)
	}

	byID := make(map[int]models.Machine, len(machines))
	for _, m := range machines {
		byID[m.ID] = m
	}

	return &snapshot{machines: machines, byID: byID, island: island, resolver: resolver}, nil
}

// findIsland returns the only machine flagged as the island.
func findIsland(op string, machines []models.Machine) (models.Machine, error) {
	var (
		island models.Machine
		found  int
	)
	for _, m := range machines {
		if m.Island {
			island = m
			found++
		}
	}

	switch found {
	case 0:
		return models.Machine{}, errors.Configuration(op, "no island machine found")
	case 1:
		return island, nil
	default:
		return models.Machine{}, errors.Configuration(op, "%d machines are flagged as the island, expected one", found)
	}
}

// machine resolves id from the snapshot, falling back to the repository for
// machines stored after the snapshot was taken.
func (s *Service) machine(ctx context.Context, snap *snapshot, id int) (models.Machine, error) {
	if m, ok := snap.byID[id]; ok {
		return m, nil
	}
	return s.machines.GetMachineByID(ctx, id)
}

// GetScanned returns every non-island machine with at least one incoming
// edge, in repository order, with the machines that reach it.
func (s *Service) GetScanned(ctx context.Context) ([]ScannedMachine, error) {
	const op = "reporting.GetScanned"

	snap, err := s.snapshot(ctx, op)
	if err != nil {
		return nil, err
	}

	scanned := make([]ScannedMachine, 0, len(snap.machines))
	for _, m := range snap.machines {
		if m.ID == snap.island.ID || !snap.resolver.HasIncoming(m.ID) {
			continue
		}

		edges := snap.resolver.Sources(m.ID)
		from := make([]models.SimpleMachine, 0, len(edges))
		for _, edge := range edges {
			src, err := s.machine(ctx, snap, edge.SourceMachineID)
			if errors.KindOf(err) == errors.KindNotFound {
				msg := fmt.Sprintf("machine %d is reached from unknown machine %d", m.ID, edge.SourceMachineID)
				return nil, errors.E(errors.KindConfiguration, op, msg, err)
			}
			if err != nil {
				return nil, fmt.Errorf("failed to get source machine %d: %w", edge.SourceMachineID, err)
			}
			from = append(from, src.Simplify())
		}

		scanned = append(scanned, ScannedMachine{
			Hostname:            m.Hostname,
			IPAddresses:         m.IPAddresses(),
			AccessibleFromNodes: from,
			Services:            m.ServiceNames(),
			DomainName:          m.DomainName,
		})
	}

	s.logger.Debug().
		Int("machines", len(snap.machines)).
		Int("scanned", len(scanned)).
		Msg("Built scanned machines report")

	return scanned, nil
}

func (s *Service) listAgents(ctx context.Context, op string) ([]models.Agent, error) {
	agents, err := s.agents.GetAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get agents: %w", err)
	}
	if len(agents) == 0 {
		return nil, errors.NotFound(op, "no agents have run yet")
	}
	return agents, nil
}

// GetFirstAgentTime returns the earliest agent start time in UTC.
func (s *Service) GetFirstAgentTime(ctx context.Context) (time.Time, error) {
	agents, err := s.listAgents(ctx, "reporting.GetFirstAgentTime")
	if err != nil {
		return time.Time{}, err
	}

	return firstStart(agents), nil
}

func firstStart(agents []models.Agent) time.Time {
	first := agents[0].StartTime
	for _, a := range agents[1:] {
		first = min(first, a.StartTime)
	}
	return time.Unix(first, 0).UTC()
}

// GetLastAgentDeadTime returns the latest stop time among stopped agents and
// whether any agent is still running.
func (s *Service) GetLastAgentDeadTime(ctx context.Context) (LastDeadTime, error) {
	agents, err := s.listAgents(ctx, "reporting.GetLastAgentDeadTime")
	if err != nil {
		return LastDeadTime{}, err
	}
	return lastDeadTime(agents), nil
}

func lastDeadTime(agents []models.Agent) LastDeadTime {
	var out LastDeadTime
	for _, a := range agents {
		stopped, ok := a.Stopped()
		if !ok {
			out.AgentsRunning = true
			continue
		}
		if !out.Known || stopped.After(out.Time) {
			out.Time = stopped
			out.Known = true
		}
	}
	return out
}
