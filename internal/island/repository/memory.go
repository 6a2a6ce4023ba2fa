package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/models"
)

// MemoryAgentRepository is an in-memory AgentRepository.
type MemoryAgentRepository struct {
	agents *ordered[uuid.UUID, models.Agent]
}

// NewMemoryAgentRepository creates an empty agent store.
func NewMemoryAgentRepository() *MemoryAgentRepository {
	return &MemoryAgentRepository{agents: newOrdered[uuid.UUID](models.Agent.Clone)}
}

func (r *MemoryAgentRepository) GetAgents(_ context.Context) ([]models.Agent, error) {
	return r.agents.list(), nil
}

func (r *MemoryAgentRepository) GetAgentByID(_ context.Context, id uuid.UUID) (models.Agent, error) {
	agent, ok := r.agents.get(id)
	if !ok {
		return models.Agent{}, errors.NotFound("repository.GetAgentByID", "agent %s not found", id)
	}
	return agent, nil
}

func (r *MemoryAgentRepository) UpsertAgent(_ context.Context, agent models.Agent) error {
	if agent.ID == uuid.Nil {
		return errors.InvalidValue("repository.UpsertAgent", "agent id cannot be empty")
	}
	r.agents.put(agent.ID, agent)
	return nil
}

func (r *MemoryAgentRepository) ResetAgents(_ context.Context) error {
	r.agents.retain(func(models.Agent) bool { return false })
	return nil
}

// MemoryMachineRepository is an in-memory MachineRepository.
type MemoryMachineRepository struct {
	machines *ordered[int, models.Machine]
}

// NewMemoryMachineRepository creates an empty machine store.
func NewMemoryMachineRepository() *MemoryMachineRepository {
	return &MemoryMachineRepository{machines: newOrdered[int](models.Machine.Clone)}
}

func (r *MemoryMachineRepository) GetMachines(_ context.Context) ([]models.Machine, error) {
	return r.machines.list(), nil
}

func (r *MemoryMachineRepository) GetMachineByID(_ context.Context, id int) (models.Machine, error) {
	m, ok := r.machines.get(id)
	if !ok {
		return models.Machine{}, errors.NotFound("repository.GetMachineByID", "machine %d not found", id)
	}
	return m, nil
}

func (r *MemoryMachineRepository) UpsertMachine(_ context.Context, machine models.Machine) error {
	r.machines.put(machine.ID, machine)
	return nil
}

func (r *MemoryMachineRepository) ResetMachines(_ context.Context) error {
	r.machines.retain(func(m models.Machine) bool { return m.Island })
	return nil
}

// MemoryNodeRepository is an in-memory NodeRepository.
type MemoryNodeRepository struct {
	nodes *ordered[int, models.Node]
}

// NewMemoryNodeRepository creates an empty node store.
func NewMemoryNodeRepository() *MemoryNodeRepository {
	return &MemoryNodeRepository{nodes: newOrdered[int](models.Node.Clone)}
}

func (r *MemoryNodeRepository) GetNodes(_ context.Context) ([]models.Node, error) {
	return r.nodes.list(), nil
}

// UpsertNode replaces the node for node.MachineID.
func (r *MemoryNodeRepository) UpsertNode(_ context.Context, node models.Node) error {
	r.nodes.put(node.MachineID, node)
	return nil
}

func (r *MemoryNodeRepository) ResetNodes(_ context.Context) error {
	r.nodes.retain(func(models.Node) bool { return false })
	return nil
}

// MemorySimulationRepository is an in-memory SimulationRepository.
type MemorySimulationRepository struct {
	mu        sync.RWMutex
	mode      models.IslandMode
	terminate time.Time
	signalled bool
}

// NewMemorySimulationRepository creates a store in the given initial mode.
func NewMemorySimulationRepository(initial models.IslandMode) *MemorySimulationRepository {
	return &MemorySimulationRepository{mode: initial}
}

func (r *MemorySimulationRepository) GetMode(_ context.Context) (models.IslandMode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode, nil
}

func (r *MemorySimulationRepository) SetMode(_ context.Context, mode models.IslandMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	return nil
}

func (r *MemorySimulationRepository) GetTerminateSignal(_ context.Context) (time.Time, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.terminate, r.signalled, nil
}

func (r *MemorySimulationRepository) SetTerminateSignal(_ context.Context, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminate = at.UTC()
	r.signalled = true
	return nil
}

func (r *MemorySimulationRepository) ClearTerminateSignal(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminate = time.Time{}
	r.signalled = false
	return nil
}

var (
	_ AgentRepository      = (*MemoryAgentRepository)(nil)
	_ MachineRepository    = (*MemoryMachineRepository)(nil)
	_ NodeRepository       = (*MemoryNodeRepository)(nil)
	_ SimulationRepository = (*MemorySimulationRepository)(nil)
)
