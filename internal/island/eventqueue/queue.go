// Package eventqueue delivers island events from publishers to subscribers.
//
// Publish never blocks on a subscriber: each delivery runs in its own
// goroutine, so subscribers of one topic see events in no particular order.
package eventqueue

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Topic names a stream of island events.
type Topic string

const (
	// TopicSetIslandMode carries the new models.IslandMode.
	TopicSetIslandMode Topic = "set_island_mode"
	// TopicClearSimulationData carries no payload.
	TopicClearSimulationData Topic = "clear_simulation_data"
	// TopicResetAgentConfiguration carries no payload.
	TopicResetAgentConfiguration Topic = "reset_agent_configuration"
	// TopicTerminateAgents carries the time.Time of the request.
	TopicTerminateAgents Topic = "terminate_agents"
)

// Subscriber handles one event. A returned error is logged, never retried.
type Subscriber func(ctx context.Context, event any) error

// Publisher is the side of the queue that services depend on.
type Publisher interface {
	Publish(topic Topic, event any)
}

// Queue is an in-process publish/subscribe hub.
type Queue struct {
	mu     sync.RWMutex
	subs   map[Topic][]namedSubscriber
	wg     sync.WaitGroup
	ctx    context.Context
	logger zerolog.Logger
}

type namedSubscriber struct {
	name string
	fn   Subscriber
}

// New creates a queue. ctx is handed to every subscriber call; cancelling it
// tells subscribers the island is shutting down.
func New(ctx context.Context, logger zerolog.Logger) *Queue {
	return &Queue{
		subs:   make(map[Topic][]namedSubscriber),
		ctx:    ctx,
		logger: logger.With().Str("component", "eventqueue").Logger(),
	}
}

// Subscribe registers fn for topic. name identifies the subscriber in logs.
func (q *Queue) Subscribe(topic Topic, name string, fn Subscriber) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subs[topic] = append(q.subs[topic], namedSubscriber{name: name, fn: fn})
}

// Publish hands event to every subscriber of topic and returns immediately.
func (q *Queue) Publish(topic Topic, event any) {
	q.mu.RLock()
	subs := append([]namedSubscriber(nil), q.subs[topic]...)
	q.mu.RUnlock()

	q.logger.Debug().
		Str("topic", string(topic)).
		Int("subscribers", len(subs)).
		Msg("Publishing event")

	for _, sub := range subs {
		q.wg.Add(1)
		go q.deliver(topic, sub, event)
	}
}

func (q *Queue) deliver(topic Topic, sub namedSubscriber, event any) {
	defer q.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().
				Str("topic", string(topic)).
				Str("subscriber", sub.name).
				Str("panic", fmt.Sprint(r)).
				Msg("Subscriber panicked")
		}
	}()

	if err := sub.fn(q.ctx, event); err != nil {
		q.logger.Warn().
			Err(err).
			Str("topic", string(topic)).
			Str("subscriber", sub.name).
			Msg("Subscriber failed")
	}
}

// Wait blocks until every delivery started so far has finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

var _ Publisher = (*Queue)(nil)
