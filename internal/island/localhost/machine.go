// Package localhost describes the machine the island runs on.
package localhost

import (
	"context"
	"fmt"
	"math"
	"net/netip"
	"slices"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/zeebo/xxh3"

	"github.com/island-mesh/island/internal/island/models"
)

// Inspector reads host facts through gopsutil.
type Inspector struct {
	hostnameOverride string

	hostInfo   func(ctx context.Context) (*host.InfoStat, error)
	interfaces func(ctx context.Context) (net.InterfaceStatList, error)
}

// NewInspector creates an Inspector. A non-empty hostnameOverride replaces the
// hostname reported by the OS.
func NewInspector(hostnameOverride string) *Inspector {
	return &Inspector{
		hostnameOverride: hostnameOverride,
		hostInfo:         host.InfoWithContext,
		interfaces:       net.InterfacesWithContext,
	}
}

// IslandMachine builds the island's own Machine record with the given id.
func (i *Inspector) IslandMachine(ctx context.Context, id int) (models.Machine, error) {
	info, err := i.hostInfo(ctx)
	if err != nil {
		return models.Machine{}, fmt.Errorf("failed to read host info: %w", err)
	}
	ifaces, err := i.interfaces(ctx)
	if err != nil {
		return models.Machine{}, fmt.Errorf("failed to list network interfaces: %w", err)
	}

	hostname := info.Hostname
	if i.hostnameOverride != "" {
		hostname = i.hostnameOverride
	}

	return models.Machine{
		ID:                id,
		Island:            true,
		HardwareID:        HardwareID(info.HostID),
		Hostname:          hostname,
		NetworkInterfaces: Prefixes(ifaces),
		Services:          map[models.SocketAddress]models.NetworkService{},
	}, nil
}

// MachineStore is the part of the machine repository Register needs.
type MachineStore interface {
	GetMachines(ctx context.Context) ([]models.Machine, error)
	UpsertMachine(ctx context.Context, machine models.Machine) error
}

// Register stores the island's machine record. A machine already flagged as
// the island keeps its id; otherwise the island takes the next free id.
func (i *Inspector) Register(ctx context.Context, store MachineStore) (models.Machine, error) {
	machines, err := store.GetMachines(ctx)
	if err != nil {
		return models.Machine{}, fmt.Errorf("failed to get machines: %w", err)
	}

	id := 1
	for _, m := range machines {
		if m.Island {
			id = m.ID
			break
		}
		id = max(id, m.ID+1)
	}

	island, err := i.IslandMachine(ctx, id)
	if err != nil {
		return models.Machine{}, err
	}
	if err := store.UpsertMachine(ctx, island); err != nil {
		return models.Machine{}, fmt.Errorf("failed to store island machine: %w", err)
	}
	return island, nil
}

// HardwareID maps an OS host id onto a positive int64. An empty id maps to 0.
func HardwareID(hostID string) int64 {
	if hostID == "" {
		return 0
	}
	return int64(xxh3.HashString(hostID) & math.MaxInt64)
}

// Prefixes returns the addresses of every non-loopback interface, in interface order.
func Prefixes(ifaces net.InterfaceStatList) []netip.Prefix {
	prefixes := []netip.Prefix{}
	for _, iface := range ifaces {
		if slices.Contains(iface.Flags, "loopback") {
			continue
		}
		for _, addr := range iface.Addrs {
			p, err := netip.ParsePrefix(addr.Addr)
			if err != nil {
				continue
			}
			if p.Addr().IsLoopback() || p.Addr().IsLinkLocalUnicast() {
				continue
			}
			prefixes = append(prefixes, p)
		}
	}
	return prefixes
}
