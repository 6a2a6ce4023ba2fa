// Package agentconfig owns the configuration handed to agents.
package agentconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/models"
	"github.com/island-mesh/island/internal/island/pba"
	"github.com/island-mesh/island/internal/island/repository"
)

// PBAFiles reports the uploaded custom PBA file names.
type PBAFiles interface {
	Filename(fileType pba.FileType) string
}

// Service reads and replaces the agent configuration. The custom PBA file
// names always reflect the uploaded files.
type Service struct {
	repo   repository.AgentConfigurationRepository
	files  PBAFiles
	logger zerolog.Logger

	mu sync.Mutex
}

// NewService creates an agent configuration service.
func NewService(repo repository.AgentConfigurationRepository, files PBAFiles, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		files:  files,
		logger: logger.With().Str("component", "agentconfig").Logger(),
	}
}

// Get returns the current configuration.
func (s *Service) Get(ctx context.Context) (models.AgentConfiguration, error) {
	cfg, err := s.repo.GetAgentConfiguration(ctx)
	if err != nil {
		return models.AgentConfiguration{}, fmt.Errorf("failed to get agent configuration: %w", err)
	}
	cfg.CustomPBAs.LinuxFilename = s.files.Filename(pba.LinuxFile)
	cfg.CustomPBAs.WindowsFilename = s.files.Filename(pba.WindowsFile)
	return cfg, nil
}

// SetFromJSON replaces the configuration with the document in body. Fields
// the document omits take their default values. A body that is not one JSON
// object of known fields fails with MalformedInput; a value outside its
// domain fails with InvalidValue.
func (s *Service) SetFromJSON(ctx context.Context, body []byte) error {
	const op = "agentconfig.SetFromJSON"

	cfg := models.DefaultAgentConfiguration()
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return errors.MalformedInput(op, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.MalformedInput(op, fmt.Errorf("unexpected data after configuration"))
	}
	if err := cfg.Validate(); err != nil {
		return errors.InvalidValue(op, "invalid agent configuration: %v", err)
	}

	// File names follow the uploads, not the request.
	cfg.CustomPBAs.LinuxFilename = ""
	cfg.CustomPBAs.WindowsFilename = ""

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.SetAgentConfiguration(ctx, cfg); err != nil {
		return fmt.Errorf("failed to store agent configuration: %w", err)
	}
	s.logger.Info().Msg("Agent configuration updated")
	return nil
}

// Reset restores the default configuration.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.SetAgentConfiguration(ctx, models.DefaultAgentConfiguration()); err != nil {
		return fmt.Errorf("failed to reset agent configuration: %w", err)
	}
	s.logger.Info().Msg("Agent configuration reset")
	return nil
}

// OnResetAgentConfiguration is the event queue subscriber for Reset.
func (s *Service) OnResetAgentConfiguration(ctx context.Context, _ any) error {
	return s.Reset(ctx)
}
