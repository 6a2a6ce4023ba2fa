package database_test

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/database"
	"github.com/island-mesh/island/internal/island/models"
	"github.com/island-mesh/island/internal/testutil"
)

func TestDatabase_ReportFixtureRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)
	testutil.SeedReport(t, db, db, db)

	machines, err := db.GetMachines(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.ReportMachines(), normalizeMachines(machines))

	nodes, err := db.GetNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, []int{1, 99, 3}, []int{nodes[0].MachineID, nodes[1].MachineID, nodes[2].MachineID})
	assert.True(t, nodes[0].Connections["2"].Has(models.CommunicationExploited))
	assert.True(t, nodes[2].Connections["99"].Has(models.CommunicationCC))

	agents, err := db.GetAgents(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.ReportAgents(), agents)
}

// normalizeMachines maps empty service maps back to nil so fixtures compare equal.
func normalizeMachines(ms []models.Machine) []models.Machine {
	for i := range ms {
		if len(ms[i].Services) == 0 {
			ms[i].Services = nil
		}
	}
	return ms
}

func TestDatabase_UpsertKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)

	require.NoError(t, db.UpsertMachines(ctx, []models.Machine{{ID: 5}, {ID: 2}, {ID: 7}}))
	require.NoError(t, db.UpsertMachine(ctx, models.Machine{
		ID:       5,
		Hostname: "enriched",
		Services: map[models.SocketAddress]models.NetworkService{
			{IP: netip.MustParseAddr("10.0.0.5"), Port: 22}: models.ServiceSSH,
		},
	}))

	machines, err := db.GetMachines(ctx)
	require.NoError(t, err)
	require.Len(t, machines, 3)
	assert.Equal(t, 5, machines[0].ID)
	assert.Equal(t, "enriched", machines[0].Hostname)
	assert.Equal(t, []string{"ssh"}, machines[0].ServiceNames())
}

func TestDatabase_NotFound(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)

	_, err := db.GetMachineByID(ctx, 404)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))

	_, err = db.GetAgentByID(ctx, uuid.New())
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestDatabase_AgentStopTimeUpdate(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)
	parent := uuid.New()
	agent := models.Agent{ID: uuid.New(), MachineID: 1, StartTime: 10, ParentID: &parent}

	require.NoError(t, db.UpsertAgent(ctx, agent))
	got, err := db.GetAgentByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.True(t, got.Running())
	require.NotNil(t, got.ParentID)
	assert.Equal(t, parent, *got.ParentID)
	assert.False(t, got.CCServer.IsValid())

	agent.StopTime = testutil.Int64(20)
	require.NoError(t, db.UpsertAgent(ctx, agent))
	got, err = db.GetAgentByID(ctx, agent.ID)
	require.NoError(t, err)
	require.NotNil(t, got.StopTime)
	assert.Equal(t, int64(20), *got.StopTime)
}

func TestDatabase_Reset(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)
	testutil.SeedReport(t, db, db, db)

	require.NoError(t, db.ResetAgents(ctx))
	require.NoError(t, db.ResetMachines(ctx))
	require.NoError(t, db.ResetNodes(ctx))

	agents, err := db.GetAgents(ctx)
	require.NoError(t, err)
	assert.Empty(t, agents)

	machines, err := db.GetMachines(ctx)
	require.NoError(t, err)
	require.Len(t, machines, 1)
	assert.True(t, machines[0].Island)

	nodes, err := db.GetNodes(ctx)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestDatabase_Simulation(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)

	mode, err := db.GetMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ModeUnset, mode)

	require.NoError(t, db.SetMode(ctx, models.ModeAdvanced))
	mode, err = db.GetMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ModeAdvanced, mode)

	at := time.Unix(1_700_000_000, 0)
	require.NoError(t, db.SetTerminateSignal(ctx, at))
	got, ok, err := db.GetTerminateSignal(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Equal(at))

	mode, err = db.GetMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ModeAdvanced, mode, "terminate signal must not clobber the mode")

	require.NoError(t, db.ClearTerminateSignal(ctx))
	_, ok, err = db.GetTerminateSignal(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDatabase_ReopenPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	logger := testutil.NewTestLogger(t)

	db, err := database.New(dir, logger)
	require.NoError(t, err)
	require.NoError(t, db.UpsertMachine(ctx, models.Machine{ID: 1}))
	require.NoError(t, db.Close())

	db, err = database.New(dir, logger)
	require.NoError(t, err)
	require.NoError(t, db.UpsertMachine(ctx, models.Machine{ID: 2}))
	require.NoError(t, db.Close())

	ro, err := database.NewReadOnly(dir, logger)
	require.NoError(t, err)
	defer func() { _ = ro.Close() }()
	assert.True(t, ro.ReadOnly())

	machines, err := ro.GetMachines(ctx)
	require.NoError(t, err)
	require.Len(t, machines, 2)
	assert.Equal(t, []int{1, 2}, []int{machines[0].ID, machines[1].ID})
}
