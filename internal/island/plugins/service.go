package plugins

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/models"
	"github.com/island-mesh/island/internal/island/repository"
)

// Source locates and downloads released plugin archives.
type Source interface {
	Find(ctx context.Context, pluginType, name, version string) (PluginMetadata, error)
	DownloadArchive(ctx context.Context, m PluginMetadata) ([]byte, error)
}

// Manifests groups installed plugin manifests by type, then by name.
type Manifests map[models.AgentPluginType]map[string]models.AgentPluginManifest

// Service installs, removes and serves agent plugins.
type Service struct {
	source Source
	repo   repository.AgentPluginRepository
	logger zerolog.Logger

	// mu serialises installs so a plugin's builds are replaced as a whole.
	mu sync.Mutex
}

// NewService creates a plugin service storing plugins in repo.
func NewService(source Source, repo repository.AgentPluginRepository, logger zerolog.Logger) *Service {
	return &Service{
		source: source,
		repo:   repo,
		logger: logger.With().Str("component", "plugins").Logger(),
	}
}

// InstallArchive installs the plugin in archive, replacing every build of an
// already installed plugin with the same type and name.
func (s *Service) InstallArchive(ctx context.Context, archive []byte) (models.AgentPluginManifest, error) {
	plugins, err := ParseArchive(archive)
	if err != nil {
		return models.AgentPluginManifest{}, err
	}
	manifest := plugins[0].Manifest

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.ReplaceAgentPlugin(ctx, manifest.PluginType, manifest.Name, plugins); err != nil {
		return models.AgentPluginManifest{}, fmt.Errorf("failed to install plugin %s: %w", manifest.Name, err)
	}

	s.logger.Info().
		Str("type", string(manifest.PluginType)).
		Str("name", manifest.Name).
		Str("version", manifest.Version).
		Int("builds", len(plugins)).
		Msg("Agent plugin installed")
	return manifest, nil
}

// InstallFromRepository downloads a released plugin and installs it. An
// empty version selects the newest release.
func (s *Service) InstallFromRepository(ctx context.Context, pluginType, name, version string) (models.AgentPluginManifest, error) {
	const op = "plugins.InstallFromRepository"

	if _, err := models.ParseAgentPluginType(pluginType); err != nil {
		return models.AgentPluginManifest{}, errors.InvalidValue(op, "%v", err)
	}
	if s.source == nil {
		return models.AgentPluginManifest{}, errors.Configuration(op, "no plugin repository is configured")
	}

	meta, err := s.source.Find(ctx, pluginType, name, version)
	if err != nil {
		return models.AgentPluginManifest{}, err
	}
	archive, err := s.source.DownloadArchive(ctx, meta)
	if err != nil {
		return models.AgentPluginManifest{}, err
	}

	plugins, err := ParseArchive(archive)
	if err != nil {
		return models.AgentPluginManifest{}, errors.E(errors.KindTransportGeneric, op,
			fmt.Sprintf("repository served an invalid archive for %s %s", name, meta.Version), err)
	}
	if m := plugins[0].Manifest; string(m.PluginType) != pluginType || m.Name != name {
		return models.AgentPluginManifest{}, errors.E(errors.KindTransportGeneric, op,
			fmt.Sprintf("repository served %s %s for %s %s", m.PluginType, m.Name, pluginType, name), nil)
	}
	return s.InstallArchive(ctx, archive)
}

// Uninstall removes every build of a plugin.
func (s *Service) Uninstall(ctx context.Context, pluginType, name string) error {
	const op = "plugins.Uninstall"

	pt, err := models.ParseAgentPluginType(pluginType)
	if err != nil {
		return errors.InvalidValue(op, "%v", err)
	}
	if name == "" {
		return errors.InvalidValue(op, "plugin name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.RemoveAgentPlugin(ctx, pt, name); err != nil {
		return fmt.Errorf("failed to uninstall plugin %s: %w", name, err)
	}
	s.logger.Info().Str("type", pluginType).Str("name", name).Msg("Agent plugin uninstalled")
	return nil
}

// GetPlugin returns the build of a plugin for hostOS.
func (s *Service) GetPlugin(ctx context.Context, hostOS, pluginType, name string) (models.AgentPlugin, error) {
	const op = "plugins.GetPlugin"

	os, err := models.ParseOperatingSystem(hostOS)
	if err != nil {
		return models.AgentPlugin{}, errors.InvalidValue(op, "%v", err)
	}
	pt, err := models.ParseAgentPluginType(pluginType)
	if err != nil {
		return models.AgentPlugin{}, errors.InvalidValue(op, "%v", err)
	}
	return s.repo.GetAgentPlugin(ctx, os, pt, name)
}

// Manifests returns the manifest of every installed plugin.
func (s *Service) Manifests(ctx context.Context) (Manifests, error) {
	plugins, err := s.repo.GetAgentPlugins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent plugins: %w", err)
	}

	out := make(Manifests)
	for _, p := range plugins {
		byName, ok := out[p.Manifest.PluginType]
		if !ok {
			byName = make(map[string]models.AgentPluginManifest)
			out[p.Manifest.PluginType] = byName
		}
		byName[p.Manifest.Name] = p.Manifest
	}
	return out, nil
}

// ConfigurationSchemas returns the option schema of every installed plugin,
// grouped like Manifests.
func (s *Service) ConfigurationSchemas(ctx context.Context) (map[models.AgentPluginType]map[string]map[string]any, error) {
	plugins, err := s.repo.GetAgentPlugins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent plugins: %w", err)
	}

	out := make(map[models.AgentPluginType]map[string]map[string]any)
	for _, p := range plugins {
		if out[p.Manifest.PluginType] == nil {
			out[p.Manifest.PluginType] = make(map[string]map[string]any)
		}
		out[p.Manifest.PluginType][p.Manifest.Name] = p.ConfigSchema
	}
	return out, nil
}
