package report

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/island-mesh/island/internal/island/database"
	"github.com/island-mesh/island/internal/island/reporting"
	"github.com/island-mesh/island/internal/testutil"
)

func TestScannedRows(t *testing.T) {
	repos := testutil.NewSeededRepositories(t)
	svc := reporting.NewService(repos.Agents, repos.Machines, repos.Nodes, testutil.NewTestLogger(t))

	scanned, err := svc.GetScanned(context.Background())
	require.NoError(t, err)

	rows := scannedRows(scanned)
	require.Len(t, rows, 2)
	assert.Equal(t, "machine_1", rows[0].Hostname)
	assert.Equal(t, []string{"Island"}, rows[0].From)
	assert.Equal(t, []string{"10.10.10.2"}, rows[1].IPs)
	assert.Equal(t, []string{"machine_1"}, rows[1].From)
}

func TestLoadTimes(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	t.Run("no agents", func(t *testing.T) {
		repos := testutil.NewMemoryRepositories()
		svc := reporting.NewService(repos.Agents, repos.Machines, repos.Nodes, testutil.NewTestLogger(t))

		row, err := loadTimes(cmd, svc)
		require.NoError(t, err)
		assert.Nil(t, row.FirstAgentStart)
		assert.Nil(t, row.LastAgentStop)
		assert.False(t, row.AgentsRunning)
	})

	t.Run("seeded", func(t *testing.T) {
		repos := testutil.NewSeededRepositories(t)
		svc := reporting.NewService(repos.Agents, repos.Machines, repos.Nodes, testutil.NewTestLogger(t))

		row, err := loadTimes(cmd, svc)
		require.NoError(t, err)
		require.NotNil(t, row.FirstAgentStart)
		require.NotNil(t, row.LastAgentStop)
		assert.Equal(t, int64(100), row.FirstAgentStart.Unix())
		assert.Equal(t, int64(40003), row.LastAgentStop.Unix())
		assert.True(t, row.AgentsRunning)
	})
}

func TestReportCmd_ReadsDatabase(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ISLAND_CONFIG", t.TempDir())

	db, err := database.New(dir, testutil.NewTestLogger(t))
	require.NoError(t, err)
	testutil.SeedReport(t, db, db, db)
	require.NoError(t, db.Close())

	cmd := NewReportCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"summary", "--data-dir", dir, "-o", "json"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), `"exploited": 1`)
	assert.Contains(t, out.String(), `"agents": 5`)
}
