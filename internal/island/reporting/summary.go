package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/island-mesh/island/internal/island/models"
)

// Summary is an overview of the run.
type Summary struct {
	FirstAgentStart time.Time    `json:"first_agent_start"`
	LastAgentStop   LastDeadTime `json:"last_agent_stop"`
	Agents          int          `json:"agents"`
	Machines        int          `json:"machines"`
	Scanned         int          `json:"scanned"`
	Exploited       int          `json:"exploited"`
}

// GetSummary counts agents and machines and collects the run's time bounds.
// Unlike the time getters it does not fail when no agent has run.
func (s *Service) GetSummary(ctx context.Context) (Summary, error) {
	const op = "reporting.GetSummary"

	snap, err := s.snapshot(ctx, op)
	if err != nil {
		return Summary{}, err
	}

	agents, err := s.agents.GetAgents(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to get agents: %w", err)
	}

	sum := Summary{
		Agents:   len(agents),
		Machines: len(snap.machines),
	}
	for _, m := range snap.machines {
		if m.ID == snap.island.ID {
			continue
		}
		if snap.resolver.HasIncoming(m.ID) {
			sum.Scanned++
		}
		if snap.resolver.HasIncomingOfType(m.ID, models.CommunicationExploited) {
			sum.Exploited++
		}
	}

	if len(agents) > 0 {
		sum.FirstAgentStart = firstStart(agents)
		sum.LastAgentStop = lastDeadTime(agents)
	}

	return sum, nil
}
