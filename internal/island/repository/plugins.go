package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/models"
)

type pluginKey struct {
	os         models.OperatingSystem
	pluginType models.AgentPluginType
	name       string
}

func keyOf(p models.AgentPlugin) pluginKey {
	return pluginKey{os: p.HostOperatingSystem, pluginType: p.Manifest.PluginType, name: p.Manifest.Name}
}

// MemoryAgentPluginRepository is an in-memory AgentPluginRepository.
type MemoryAgentPluginRepository struct {
	plugins *ordered[pluginKey, models.AgentPlugin]
}

// NewMemoryAgentPluginRepository creates an empty plugin store.
func NewMemoryAgentPluginRepository() *MemoryAgentPluginRepository {
	return &MemoryAgentPluginRepository{plugins: newOrdered[pluginKey](models.AgentPlugin.Clone)}
}

func (r *MemoryAgentPluginRepository) GetAgentPlugin(_ context.Context, os models.OperatingSystem, pluginType models.AgentPluginType, name string) (models.AgentPlugin, error) {
	p, ok := r.plugins.get(pluginKey{os: os, pluginType: pluginType, name: name})
	if !ok {
		return models.AgentPlugin{}, errors.NotFound("repository.GetAgentPlugin",
			"%s plugin %s for %s is not installed", pluginType, name, os)
	}
	return p, nil
}

func (r *MemoryAgentPluginRepository) GetAgentPlugins(_ context.Context) ([]models.AgentPlugin, error) {
	return r.plugins.list(), nil
}

func (r *MemoryAgentPluginRepository) ReplaceAgentPlugin(_ context.Context, pluginType models.AgentPluginType, name string, plugins []models.AgentPlugin) error {
	keys := make([]pluginKey, len(plugins))
	for i, p := range plugins {
		if p.Manifest.PluginType != pluginType || p.Manifest.Name != name {
			return errors.InvalidValue("repository.ReplaceAgentPlugin",
				"plugin %s %s cannot replace %s %s", p.Manifest.PluginType, p.Manifest.Name, pluginType, name)
		}
		keys[i] = keyOf(p)
	}
	r.plugins.swap(otherPlugins(pluginType, name), keys, plugins)
	return nil
}

func (r *MemoryAgentPluginRepository) RemoveAgentPlugin(_ context.Context, pluginType models.AgentPluginType, name string) error {
	r.plugins.retain(otherPlugins(pluginType, name))
	return nil
}

func otherPlugins(pluginType models.AgentPluginType, name string) func(models.AgentPlugin) bool {
	return func(p models.AgentPlugin) bool {
		return p.Manifest.PluginType != pluginType || p.Manifest.Name != name
	}
}

// MemoryAgentConfigurationRepository is an in-memory AgentConfigurationRepository.
// It keeps the encoded document so callers never share nested slices or maps.
type MemoryAgentConfigurationRepository struct {
	mu  sync.RWMutex
	doc []byte
}

// NewMemoryAgentConfigurationRepository creates a store holding the default configuration.
func NewMemoryAgentConfigurationRepository() *MemoryAgentConfigurationRepository {
	return &MemoryAgentConfigurationRepository{}
}

func (r *MemoryAgentConfigurationRepository) GetAgentConfiguration(_ context.Context) (models.AgentConfiguration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.doc == nil {
		return models.DefaultAgentConfiguration(), nil
	}
	var cfg models.AgentConfiguration
	if err := json.Unmarshal(r.doc, &cfg); err != nil {
		return models.AgentConfiguration{}, fmt.Errorf("failed to decode agent configuration: %w", err)
	}
	return cfg, nil
}

func (r *MemoryAgentConfigurationRepository) SetAgentConfiguration(_ context.Context, cfg models.AgentConfiguration) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode agent configuration: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc = doc
	return nil
}

var (
	_ AgentPluginRepository        = (*MemoryAgentPluginRepository)(nil)
	_ AgentConfigurationRepository = (*MemoryAgentConfigurationRepository)(nil)
)
