// Package mode owns the island's operating mode.
package mode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/eventqueue"
	"github.com/island-mesh/island/internal/island/models"
)

// Store persists the mode.
type Store interface {
	GetMode(ctx context.Context) (models.IslandMode, error)
	SetMode(ctx context.Context, mode models.IslandMode) error
}

// Service holds the current mode. Every mode may follow every other mode.
//
// Reads never block and never observe a partial value. A change is stored,
// then made visible, then published; publication does not wait for subscribers.
type Service struct {
	// mu serialises writers so the stored and visible modes agree.
	mu        sync.Mutex
	current   atomic.Value
	store     Store
	publisher eventqueue.Publisher
	logger    zerolog.Logger
}

// New creates a Service starting from the mode held in store.
func New(ctx context.Context, store Store, publisher eventqueue.Publisher, logger zerolog.Logger) (*Service, error) {
	mode, err := store.GetMode(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load island mode: %w", err)
	}

	s := &Service{
		store:     store,
		publisher: publisher,
		logger:    logger.With().Str("component", "mode").Logger(),
	}
	s.current.Store(mode)
	return s, nil
}

// Get returns the current mode.
func (s *Service) Get() models.IslandMode {
	return s.current.Load().(models.IslandMode)
}

// Set switches to mode. An unrecognized mode fails with InvalidValue and
// leaves the current mode unchanged.
func (s *Service) Set(ctx context.Context, mode models.IslandMode) error {
	const op = "mode.Set"

	if !mode.Valid() {
		return errors.InvalidValue(op, "%q is not a valid island mode", string(mode))
	}

	s.mu.Lock()
	previous := s.Get()
	if err := s.store.SetMode(ctx, mode); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to store island mode: %w", err)
	}
	s.current.Store(mode)
	s.mu.Unlock()

	s.logger.Info().
		Str("from", string(previous)).
		Str("to", string(mode)).
		Msg("Island mode changed")

	s.publisher.Publish(eventqueue.TopicSetIslandMode, mode)
	return nil
}

// SetFromJSON decodes a JSON body and applies it with Set.
// A body that is not a single JSON value fails with MalformedInput. A value
// that is not a string naming a mode fails with InvalidValue.
func (s *Service) SetFromJSON(ctx context.Context, body []byte) error {
	const op = "mode.SetFromJSON"

	dec := json.NewDecoder(bytes.NewReader(body))
	var value any
	if err := dec.Decode(&value); err != nil {
		return errors.MalformedInput(op, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.MalformedInput(op, fmt.Errorf("unexpected data after mode value"))
	}

	raw, ok := value.(string)
	if !ok {
		return errors.InvalidValue(op, "island mode must be a string, got %s", strings.TrimSpace(string(body)))
	}

	return s.Set(ctx, models.IslandMode(raw))
}
