package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/models"
	"github.com/island-mesh/island/internal/testutil"
)

func sshBuild(os models.OperatingSystem, version string) models.AgentPlugin {
	return models.AgentPlugin{
		Manifest: models.AgentPluginManifest{
			Name:                      "SSH",
			PluginType:                models.PluginExploiter,
			Version:                   version,
			SupportedOperatingSystems: []models.OperatingSystem{models.OSLinux, models.OSWindows},
			Safe:                      true,
		},
		ConfigSchema:        map[string]any{"type": "object"},
		SourceArchive:       []byte(string(os) + " " + version),
		HostOperatingSystem: os,
	}
}

func TestDatabase_AgentPlugins(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)

	require.NoError(t, db.ReplaceAgentPlugin(ctx, models.PluginExploiter, "SSH",
		[]models.AgentPlugin{sshBuild(models.OSLinux, "1.0.0"), sshBuild(models.OSWindows, "1.0.0")}))

	got, err := db.GetAgentPlugin(ctx, models.OSWindows, models.PluginExploiter, "SSH")
	require.NoError(t, err)
	assert.Equal(t, sshBuild(models.OSWindows, "1.0.0"), got)

	// Replacing drops builds the new version no longer ships.
	require.NoError(t, db.ReplaceAgentPlugin(ctx, models.PluginExploiter, "SSH",
		[]models.AgentPlugin{sshBuild(models.OSLinux, "2.0.0")}))

	all, err := db.GetAgentPlugins(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "2.0.0", all[0].Manifest.Version)

	_, err = db.GetAgentPlugin(ctx, models.OSWindows, models.PluginExploiter, "SSH")
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))

	mismatch := sshBuild(models.OSLinux, "3.0.0")
	mismatch.Manifest.Name = "RDP"
	err = db.ReplaceAgentPlugin(ctx, models.PluginExploiter, "SSH", []models.AgentPlugin{mismatch})
	assert.Equal(t, errors.KindInvalidValue, errors.KindOf(err))

	require.NoError(t, db.RemoveAgentPlugin(ctx, models.PluginExploiter, "SSH"))
	require.NoError(t, db.RemoveAgentPlugin(ctx, models.PluginExploiter, "SSH"))
	all, err = db.GetAgentPlugins(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDatabase_AgentConfiguration(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)

	cfg, err := db.GetAgentConfiguration(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAgentConfiguration(), cfg)

	cfg.KeepTunnelOpenTime = 5
	cfg.Payloads = []models.PluginConfiguration{{Name: "Ransomware", Options: map[string]any{"encrypt": true}}}
	require.NoError(t, db.SetAgentConfiguration(ctx, cfg))

	got, err := db.GetAgentConfiguration(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDatabase_ClearSimulationData(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)
	testutil.SeedReport(t, db, db, db)

	require.NoError(t, db.ClearSimulationData(ctx))

	agents, err := db.GetAgents(ctx)
	require.NoError(t, err)
	assert.Empty(t, agents)

	nodes, err := db.GetNodes(ctx)
	require.NoError(t, err)
	assert.Empty(t, nodes)

	machines, err := db.GetMachines(ctx)
	require.NoError(t, err)
	require.Len(t, machines, 1)
	assert.True(t, machines[0].Island)
}
