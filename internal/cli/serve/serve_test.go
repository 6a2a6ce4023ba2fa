package serve

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/island-mesh/island/internal/config"
	"github.com/island-mesh/island/internal/island/models"
	"github.com/island-mesh/island/internal/testutil"
)

func testConfig(t *testing.T) *config.IslandConfig {
	t.Helper()
	cfg := config.DefaultIslandConfig(t.TempDir())
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Mode.Initial = "ransomware"
	cfg.Plugins.RepositoryURL = "http://127.0.0.1:1"
	return cfg
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestIsland_Lifecycle(t *testing.T) {
	ctx := context.Background()
	isl, err := Build(ctx, testConfig(t), testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, isl.Start())
	defer func() { assert.NoError(t, isl.Shutdown(5*time.Second)) }()

	status, body := get(t, isl.URL()+"/api?action=is-up")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"is-up": true}`, body)

	status, body = get(t, isl.URL()+"/api/island/mode")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `"ransomware"`, body)

	machines, err := isl.db.GetMachines(ctx)
	require.NoError(t, err)
	require.Len(t, machines, 1)
	assert.True(t, machines[0].Island)

	status, body = get(t, isl.URL()+"/api/report/scanned")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, body)
}

func TestIsland_ClearSimulationData(t *testing.T) {
	ctx := context.Background()
	isl, err := Build(ctx, testConfig(t), testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, isl.Start())
	defer func() { assert.NoError(t, isl.Shutdown(5*time.Second)) }()

	for _, a := range testutil.ReportAgents() {
		require.NoError(t, isl.db.UpsertAgent(ctx, a))
	}
	require.NoError(t, isl.db.UpsertMachine(ctx, testutil.Machine3.Clone()))

	resp, err := http.Post(isl.URL()+"/api/clear-simulation-data", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	isl.queue.Wait()

	agents, err := isl.db.GetAgents(ctx)
	require.NoError(t, err)
	assert.Empty(t, agents)

	machines, err := isl.db.GetMachines(ctx)
	require.NoError(t, err)
	require.Len(t, machines, 1)
	assert.True(t, machines[0].Island)
}

func TestIsland_ResetAgentConfiguration(t *testing.T) {
	ctx := context.Background()
	isl, err := Build(ctx, testConfig(t), testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, isl.Start())
	defer func() { assert.NoError(t, isl.Shutdown(5*time.Second)) }()

	req, err := http.NewRequest(http.MethodPut, isl.URL()+"/api/agent-configuration",
		strings.NewReader(`{"keep_tunnel_open_time": 7}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	stored, err := isl.db.GetAgentConfiguration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7.0, stored.KeepTunnelOpenTime)

	resp, err = http.Post(isl.URL()+"/api/reset-agent-configuration", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	isl.queue.Wait()

	stored, err = isl.db.GetAgentConfiguration(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAgentConfiguration(), stored)
}

func TestBuild_ReusesIslandMachine(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	first, err := Build(ctx, cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)
	machines, err := first.db.GetMachines(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Shutdown(time.Second))

	second, err := Build(ctx, cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer func() { _ = second.Shutdown(time.Second) }()

	again, err := second.db.GetMachines(ctx)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, machines[0].ID, again[0].ID)
}
