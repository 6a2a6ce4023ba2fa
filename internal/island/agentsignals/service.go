// Package agentsignals tells running agents when the island wants them to stop.
package agentsignals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/island-mesh/island/internal/island/eventqueue"
	"github.com/island-mesh/island/internal/island/models"
)

// AgentReader looks up agents.
type AgentReader interface {
	GetAgentByID(ctx context.Context, id uuid.UUID) (models.Agent, error)
}

// SignalStore persists the terminate-all request.
type SignalStore interface {
	GetTerminateSignal(ctx context.Context) (time.Time, bool, error)
	SetTerminateSignal(ctx context.Context, at time.Time) error
	ClearTerminateSignal(ctx context.Context) error
}

// Service records terminate requests and answers agent stop checks.
type Service struct {
	agents    AgentReader
	store     SignalStore
	publisher eventqueue.Publisher
	logger    zerolog.Logger
}

// NewService creates an agent signals service.
func NewService(agents AgentReader, store SignalStore, publisher eventqueue.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		agents:    agents,
		store:     store,
		publisher: publisher,
		logger:    logger.With().Str("component", "agentsignals").Logger(),
	}
}

// TerminateAll asks every agent started at or before at to stop.
func (s *Service) TerminateAll(ctx context.Context, at time.Time) error {
	at = at.UTC().Truncate(time.Second)
	if err := s.store.SetTerminateSignal(ctx, at); err != nil {
		return fmt.Errorf("failed to store terminate signal: %w", err)
	}

	s.logger.Info().Time("at", at).Msg("Terminate signal sent to all agents")
	s.publisher.Publish(eventqueue.TopicTerminateAgents, at)
	return nil
}

// ShouldAgentStop reports whether a terminate request covers the agent.
// Agents launched after the last request keep running. An unknown agent
// fails with NotFound.
func (s *Service) ShouldAgentStop(ctx context.Context, agentID uuid.UUID) (bool, error) {
	agent, err := s.agents.GetAgentByID(ctx, agentID)
	if err != nil {
		return false, err
	}

	at, ok, err := s.store.GetTerminateSignal(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load terminate signal: %w", err)
	}
	if !ok {
		return false, nil
	}

	return !agent.Started().After(at), nil
}

// OnClearSimulationData forgets the terminate request when the run is reset.
func (s *Service) OnClearSimulationData(ctx context.Context, _ any) error {
	return s.store.ClearTerminateSignal(ctx)
}
