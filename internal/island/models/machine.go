package models

import (
	"maps"
	"net/netip"
	"slices"
)

// NetworkService names a service found listening on a machine.
type NetworkService string

const (
	ServiceHTTP    NetworkService = "http"
	ServiceHTTPS   NetworkService = "https"
	ServiceMSSQL   NetworkService = "mssql"
	ServiceSMB     NetworkService = "smb"
	ServiceSSH     NetworkService = "ssh"
	ServiceUnknown NetworkService = "unknown"
)

// Machine is a host discovered by an agent, or the island itself.
type Machine struct {
	ID     int  `json:"id"`
	Island bool `json:"island"`
	// HardwareID correlates re-imaged machines. Zero means unknown; it is not unique.
	HardwareID        int64                            `json:"hardware_id,omitempty"`
	Hostname          string                           `json:"hostname"`
	DomainName        string                           `json:"domain_name"`
	NetworkInterfaces []netip.Prefix                   `json:"network_interfaces"`
	Services          map[SocketAddress]NetworkService `json:"services"`
}

// SimpleMachine is a Machine flattened to strings, with no reachability data.
type SimpleMachine struct {
	ID                int      `json:"id"`
	Island            bool     `json:"island"`
	HardwareID        int64    `json:"hardware_id,omitempty"`
	Hostname          string   `json:"hostname"`
	DomainName        string   `json:"domain_name"`
	NetworkInterfaces []string `json:"network_interfaces"`
	IPAddresses       []string `json:"ip_addresses"`
}

// IPAddresses returns the address of every interface, without prefix length.
func (m Machine) IPAddresses() []string {
	out := make([]string, 0, len(m.NetworkInterfaces))
	for _, iface := range m.NetworkInterfaces {
		out = append(out, iface.Addr().String())
	}
	return out
}

// ServiceNames returns the machine's services ordered by socket address.
func (m Machine) ServiceNames() []string {
	sockets := slices.SortedFunc(maps.Keys(m.Services), SocketAddress.Compare)
	out := make([]string, 0, len(sockets))
	for _, s := range sockets {
		out = append(out, string(m.Services[s]))
	}
	return out
}

// Simplify flattens the machine for embedding in reports.
func (m Machine) Simplify() SimpleMachine {
	ifaces := make([]string, 0, len(m.NetworkInterfaces))
	for _, iface := range m.NetworkInterfaces {
		ifaces = append(ifaces, iface.String())
	}
	return SimpleMachine{
		ID:                m.ID,
		Island:            m.Island,
		HardwareID:        m.HardwareID,
		Hostname:          m.Hostname,
		DomainName:        m.DomainName,
		NetworkInterfaces: ifaces,
		IPAddresses:       m.IPAddresses(),
	}
}

// Clone returns a deep copy.
func (m Machine) Clone() Machine {
	m.NetworkInterfaces = slices.Clone(m.NetworkInterfaces)
	m.Services = maps.Clone(m.Services)
	return m
}
