package localhost

import (
	"context"
	stderrors "errors"
	"net/netip"
	"testing"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/island-mesh/island/internal/island/models"
	"github.com/island-mesh/island/internal/island/repository"
)

func fakeInspector(override string, info *host.InfoStat, ifaces net.InterfaceStatList) *Inspector {
	i := NewInspector(override)
	i.hostInfo = func(context.Context) (*host.InfoStat, error) { return info, nil }
	i.interfaces = func(context.Context) (net.InterfaceStatList, error) { return ifaces, nil }
	return i
}

var testInterfaces = net.InterfaceStatList{
	{
		Name:  "lo",
		Flags: []string{"up", "loopback"},
		Addrs: net.InterfaceAddrList{{Addr: "127.0.0.1/8"}, {Addr: "::1/128"}},
	},
	{
		Name:  "eth0",
		Flags: []string{"up", "broadcast"},
		Addrs: net.InterfaceAddrList{{Addr: "10.10.10.99/24"}, {Addr: "fe80::1/64"}},
	},
	{
		Name:  "eth1",
		Flags: []string{"up"},
		Addrs: net.InterfaceAddrList{{Addr: "192.168.56.1/24"}, {Addr: "garbage"}},
	},
}

func TestIslandMachine(t *testing.T) {
	info := &host.InfoStat{Hostname: "island-host", HostID: "4c4c4544-0042-3510-8052-b4c04f564433"}

	m, err := fakeInspector("", info, testInterfaces).IslandMachine(context.Background(), 99)
	require.NoError(t, err)

	assert.Equal(t, 99, m.ID)
	assert.True(t, m.Island)
	assert.Equal(t, "island-host", m.Hostname)
	assert.Equal(t, HardwareID(info.HostID), m.HardwareID)
	assert.Positive(t, m.HardwareID)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.10.10.99/24"),
		netip.MustParsePrefix("192.168.56.1/24"),
	}, m.NetworkInterfaces)
	assert.Equal(t, []string{"10.10.10.99", "192.168.56.1"}, m.IPAddresses())
	assert.NotNil(t, m.Services)
}

func TestIslandMachine_HostnameOverride(t *testing.T) {
	info := &host.InfoStat{Hostname: "ip-10-0-0-1"}

	m, err := fakeInspector("Island", info, nil).IslandMachine(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Island", m.Hostname)
	assert.Zero(t, m.HardwareID)
	assert.Empty(t, m.NetworkInterfaces)
	assert.NotNil(t, m.NetworkInterfaces)
}

func TestIslandMachine_Errors(t *testing.T) {
	boom := stderrors.New("boom")

	i := NewInspector("")
	i.hostInfo = func(context.Context) (*host.InfoStat, error) { return nil, boom }
	_, err := i.IslandMachine(context.Background(), 1)
	assert.ErrorIs(t, err, boom)

	i = fakeInspector("", &host.InfoStat{}, nil)
	i.interfaces = func(context.Context) (net.InterfaceStatList, error) { return nil, boom }
	_, err = i.IslandMachine(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func TestHardwareID_Stable(t *testing.T) {
	assert.Equal(t, HardwareID("abc"), HardwareID("abc"))
	assert.NotEqual(t, HardwareID("abc"), HardwareID("abd"))
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	info := &host.InfoStat{Hostname: "island-host", HostID: "host-id"}
	inspector := fakeInspector("", info, testInterfaces)

	t.Run("empty store", func(t *testing.T) {
		store := repository.NewMemoryMachineRepository()

		m, err := inspector.Register(ctx, store)
		require.NoError(t, err)
		assert.Equal(t, 1, m.ID)

		stored, err := store.GetMachineByID(ctx, 1)
		require.NoError(t, err)
		assert.True(t, stored.Island)
	})

	t.Run("next free id", func(t *testing.T) {
		store := repository.NewMemoryMachineRepository()
		require.NoError(t, store.UpsertMachine(ctx, models.Machine{ID: 7}))
		require.NoError(t, store.UpsertMachine(ctx, models.Machine{ID: 3}))

		m, err := inspector.Register(ctx, store)
		require.NoError(t, err)
		assert.Equal(t, 8, m.ID)
	})

	t.Run("existing island keeps its id", func(t *testing.T) {
		store := repository.NewMemoryMachineRepository()
		require.NoError(t, store.UpsertMachine(ctx, models.Machine{ID: 12}))
		require.NoError(t, store.UpsertMachine(ctx, models.Machine{ID: 5, Island: true, Hostname: "old"}))

		m, err := inspector.Register(ctx, store)
		require.NoError(t, err)
		assert.Equal(t, 5, m.ID)

		machines, err := store.GetMachines(ctx)
		require.NoError(t, err)
		assert.Len(t, machines, 2)
		stored, err := store.GetMachineByID(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, "island-host", stored.Hostname)
	})
}
