package models

import (
	"encoding/json"
	"net/netip"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_IPAddressesDropPrefix(t *testing.T) {
	m := Machine{
		ID: 1,
		NetworkInterfaces: []netip.Prefix{
			netip.MustParsePrefix("10.10.10.1/24"),
			netip.MustParsePrefix("fd00::5/64"),
		},
	}

	assert.Equal(t, []string{"10.10.10.1", "fd00::5"}, m.IPAddresses())
}

func TestMachine_Simplify(t *testing.T) {
	m := Machine{
		ID:                99,
		Island:            true,
		HardwareID:        5,
		Hostname:          "Island",
		NetworkInterfaces: []netip.Prefix{netip.MustParsePrefix("10.10.10.99/24")},
	}

	got := m.Simplify()

	assert.Equal(t, SimpleMachine{
		ID:                99,
		Island:            true,
		HardwareID:        5,
		Hostname:          "Island",
		NetworkInterfaces: []string{"10.10.10.99/24"},
		IPAddresses:       []string{"10.10.10.99"},
	}, got)
}

func TestMachine_ServiceNamesOrderedBySocket(t *testing.T) {
	ssh := SocketAddress{IP: netip.MustParseAddr("10.0.0.2"), Port: 22}
	web := SocketAddress{IP: netip.MustParseAddr("10.0.0.2"), Port: 8080}
	smb := SocketAddress{IP: netip.MustParseAddr("10.0.0.1"), Port: 445}
	m := Machine{Services: map[SocketAddress]NetworkService{web: ServiceHTTP, ssh: ServiceSSH, smb: ServiceSMB}}

	assert.Equal(t, []string{"smb", "ssh", "http"}, m.ServiceNames())
	assert.Equal(t, []string{}, Machine{}.ServiceNames())
}

func TestMachine_JSONRoundTrip(t *testing.T) {
	m := Machine{
		ID:                3,
		Hostname:          "db",
		NetworkInterfaces: []netip.Prefix{netip.MustParsePrefix("192.168.1.4/16")},
		Services: map[SocketAddress]NetworkService{
			{IP: netip.MustParseAddr("192.168.1.4"), Port: 1433}: ServiceMSSQL,
		},
	}

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"192.168.1.4:1433":"mssql"`)
	assert.Contains(t, string(b), `"192.168.1.4/16"`)

	var back Machine
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, m, back)
}

func TestMachine_CloneIsIndependent(t *testing.T) {
	m := Machine{NetworkInterfaces: []netip.Prefix{netip.MustParsePrefix("10.0.0.1/8")}}
	c := m.Clone()
	c.NetworkInterfaces[0] = netip.MustParsePrefix("10.0.0.2/8")

	assert.Equal(t, "10.0.0.1/8", m.NetworkInterfaces[0].String())
}

func TestCommunicationTypes(t *testing.T) {
	set := NewCommunicationTypes(CommunicationScanned, CommunicationExploited)

	assert.True(t, set.Has(CommunicationScanned))
	assert.False(t, set.Has(CommunicationCC))
	assert.Equal(t, []CommunicationType{CommunicationExploited, CommunicationScanned}, set.Slice())
	assert.Equal(t, "exploited,scanned", set.String())

	b, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `["exploited","scanned"]`, string(b))

	var back CommunicationTypes
	require.NoError(t, json.Unmarshal([]byte(`["CC","relay"]`), &back))
	assert.Equal(t, NewCommunicationTypes(CommunicationCC, CommunicationRelay), back)

	assert.Error(t, json.Unmarshal([]byte(`["teleport"]`), &back))
}

func TestParseCommunicationType(t *testing.T) {
	for _, ct := range AllCommunicationTypes {
		got, err := ParseCommunicationType(string(ct))
		require.NoError(t, err)
		assert.Equal(t, ct, got)
	}
	_, err := ParseCommunicationType("")
	assert.Error(t, err)
}

func TestSocketAddress(t *testing.T) {
	sa, err := ParseSocketAddress("127.0.0.1:5000")
	require.NoError(t, err)
	assert.Equal(t, uint16(5000), sa.Port)
	assert.Equal(t, "127.0.0.1:5000", sa.String())

	v6, err := ParseSocketAddress("[::1]:443")
	require.NoError(t, err)
	assert.Equal(t, "[::1]:443", v6.String())

	_, err = ParseSocketAddress("localhost")
	assert.Error(t, err)

	b, err := json.Marshal(sa)
	require.NoError(t, err)
	assert.Equal(t, `"127.0.0.1:5000"`, string(b))
}

func TestAgent_Times(t *testing.T) {
	stop := int64(500)
	a := Agent{ID: uuid.New(), StartTime: 100, StopTime: &stop}

	assert.False(t, a.Running())
	assert.Equal(t, int64(100), a.Started().Unix())
	stopped, ok := a.Stopped()
	require.True(t, ok)
	assert.Equal(t, int64(500), stopped.Unix())
	assert.Equal(t, "UTC", stopped.Location().String())

	c := a.Clone()
	*c.StopTime = 900
	assert.Equal(t, int64(500), *a.StopTime)

	running := Agent{StartTime: 601}
	assert.True(t, running.Running())
	_, ok = running.Stopped()
	assert.False(t, ok)
}

func TestNode_CloneIsIndependent(t *testing.T) {
	n := Node{MachineID: 1, Connections: map[string]CommunicationTypes{"2": NewCommunicationTypes(CommunicationScanned)}}
	c := n.Clone()
	c.Connections["2"].Add(CommunicationCC)
	c.Connections["3"] = NewCommunicationTypes(CommunicationRelay)

	assert.Len(t, n.Connections, 1)
	assert.False(t, n.Connections["2"].Has(CommunicationCC))
}

func TestParseIslandMode(t *testing.T) {
	tests := []struct {
		in      string
		want    IslandMode
		wantErr bool
	}{
		{in: "unset", want: ModeUnset},
		{in: "ransomware", want: ModeRansomware},
		{in: "advanced", want: ModeAdvanced},
		{in: "Advanced", wantErr: true},
		{in: "", wantErr: true},
		{in: "stealth", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIslandMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAgentConfiguration_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AgentConfiguration)
		wantErr bool
	}{
		{name: "default", mutate: func(*AgentConfiguration) {}},
		{name: "address range", mutate: func(c *AgentConfiguration) {
			c.Propagation.NetworkScan.Targets.Subnets = []string{"10.0.0.1-10.0.0.20", "192.168.0.0/16", "fd00::1", "web01"}
		}},
		{name: "negative tunnel time", wantErr: true, mutate: func(c *AgentConfiguration) { c.KeepTunnelOpenTime = -1 }},
		{name: "negative timeout", wantErr: true, mutate: func(c *AgentConfiguration) { c.Propagation.NetworkScan.ICMP.Timeout = -1 }},
		{name: "port out of range", wantErr: true, mutate: func(c *AgentConfiguration) {
			c.Propagation.NetworkScan.TCP.Ports = []int{65536}
		}},
		{name: "blocked prefix", wantErr: true, mutate: func(c *AgentConfiguration) {
			c.Propagation.NetworkScan.Targets.BlockedIPs = []string{"10.0.0.0/8"}
		}},
		{name: "bad prefix", wantErr: true, mutate: func(c *AgentConfiguration) {
			c.Propagation.NetworkScan.Targets.InaccessibleSubnets = []string{"10.0.0.0/33"}
		}},
		{name: "target with spaces", wantErr: true, mutate: func(c *AgentConfiguration) {
			c.Propagation.NetworkScan.Targets.Subnets = []string{"web 01"}
		}},
		{name: "unnamed exploiter", wantErr: true, mutate: func(c *AgentConfiguration) {
			c.Propagation.Exploitation.Exploiters = []PluginConfiguration{{}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAgentConfiguration()
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestParsePluginSelectors(t *testing.T) {
	os, err := ParseOperatingSystem("windows")
	require.NoError(t, err)
	assert.Equal(t, OSWindows, os)
	_, err = ParseOperatingSystem("Windows")
	assert.Error(t, err)

	pt, err := ParseAgentPluginType("CredentialsCollector")
	require.NoError(t, err)
	assert.Equal(t, PluginCredentialsCollector, pt)
	_, err = ParseAgentPluginType("Scanner")
	assert.Error(t, err)
}
