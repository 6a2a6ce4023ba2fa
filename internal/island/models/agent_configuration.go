package models

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"
)

// AgentConfiguration is the configuration handed to every agent at launch.
type AgentConfiguration struct {
	KeepTunnelOpenTime   float64                  `json:"keep_tunnel_open_time"`
	CustomPBAs           CustomPBAConfiguration   `json:"custom_pbas"`
	CredentialCollectors []PluginConfiguration    `json:"credential_collectors"`
	Payloads             []PluginConfiguration    `json:"payloads"`
	Propagation          PropagationConfiguration `json:"propagation"`
}

// CustomPBAConfiguration holds the user supplied post-breach actions. The file
// names are owned by the PBA upload endpoints.
type CustomPBAConfiguration struct {
	LinuxCommand    string `json:"linux_command"`
	LinuxFilename   string `json:"linux_filename"`
	WindowsCommand  string `json:"windows_command"`
	WindowsFilename string `json:"windows_filename"`
}

// PluginConfiguration enables a plugin with its options.
type PluginConfiguration struct {
	Name    string         `json:"name"`
	Options map[string]any `json:"options"`
}

// PropagationConfiguration controls how far and how agents spread.
type PropagationConfiguration struct {
	MaximumDepth int                       `json:"maximum_depth"`
	NetworkScan  NetworkScanConfiguration  `json:"network_scan"`
	Exploitation ExploitationConfiguration `json:"exploitation"`
}

// NetworkScanConfiguration controls target discovery.
type NetworkScanConfiguration struct {
	TCP            TCPScanConfiguration    `json:"tcp"`
	ICMP           ICMPScanConfiguration   `json:"icmp"`
	Fingerprinters []PluginConfiguration   `json:"fingerprinters"`
	Targets        ScanTargetConfiguration `json:"targets"`
}

// TCPScanConfiguration lists the scanned ports. Timeout is in seconds.
type TCPScanConfiguration struct {
	Timeout float64 `json:"timeout"`
	Ports   []int   `json:"ports"`
}

// ICMPScanConfiguration holds the ping timeout in seconds.
type ICMPScanConfiguration struct {
	Timeout float64 `json:"timeout"`
}

// ScanTargetConfiguration selects which hosts are scanned.
type ScanTargetConfiguration struct {
	BlockedIPs          []string `json:"blocked_ips"`
	InaccessibleSubnets []string `json:"inaccessible_subnets"`
	LocalNetworkScan    bool     `json:"local_network_scan"`
	Subnets             []string `json:"subnets"`
}

// ExploitationConfiguration lists the enabled exploiters.
type ExploitationConfiguration struct {
	Exploiters []PluginConfiguration `json:"exploiters"`
}

// DefaultAgentConfiguration returns the configuration agents get until a user
// changes it.
func DefaultAgentConfiguration() AgentConfiguration {
	return AgentConfiguration{
		KeepTunnelOpenTime:   30,
		CredentialCollectors: []PluginConfiguration{},
		Payloads:             []PluginConfiguration{},
		Propagation: PropagationConfiguration{
			MaximumDepth: 2,
			NetworkScan: NetworkScanConfiguration{
				TCP: TCPScanConfiguration{
					Timeout: 3,
					Ports:   []int{22, 80, 135, 443, 445, 2222, 3306, 3389, 5985, 5986, 7001, 8008, 8080, 8088, 8983, 9200, 9600},
				},
				ICMP:           ICMPScanConfiguration{Timeout: 1},
				Fingerprinters: []PluginConfiguration{},
				Targets: ScanTargetConfiguration{
					BlockedIPs:          []string{},
					InaccessibleSubnets: []string{},
					LocalNetworkScan:    true,
					Subnets:             []string{},
				},
			},
			Exploitation: ExploitationConfiguration{Exploiters: []PluginConfiguration{}},
		},
	}
}

// Validate reports the first field outside its valid domain.
func (c AgentConfiguration) Validate() error {
	if c.KeepTunnelOpenTime < 0 {
		return fmt.Errorf("keep_tunnel_open_time must not be negative")
	}
	if c.Propagation.MaximumDepth < 0 {
		return fmt.Errorf("propagation.maximum_depth must not be negative")
	}

	scan := c.Propagation.NetworkScan
	if scan.TCP.Timeout < 0 || scan.ICMP.Timeout < 0 {
		return fmt.Errorf("scan timeouts must not be negative")
	}
	for _, port := range scan.TCP.Ports {
		if port < 0 || port > 65535 {
			return fmt.Errorf("tcp port %d is out of range", port)
		}
	}

	for _, ip := range scan.Targets.BlockedIPs {
		if _, err := netip.ParseAddr(ip); err != nil {
			return fmt.Errorf("blocked ip %q is not an IP address", ip)
		}
	}
	subnets := slices.Concat(scan.Targets.Subnets, scan.Targets.InaccessibleSubnets)
	for _, subnet := range subnets {
		if err := validateScanTarget(subnet); err != nil {
			return err
		}
	}

	groups := map[string][]PluginConfiguration{
		"credential_collectors": c.CredentialCollectors,
		"payloads":              c.Payloads,
		"fingerprinters":        scan.Fingerprinters,
		"exploiters":            c.Propagation.Exploitation.Exploiters,
	}
	for group, plugins := range groups {
		for _, p := range plugins {
			if strings.TrimSpace(p.Name) == "" {
				return fmt.Errorf("%s: plugin name must not be empty", group)
			}
		}
	}
	return nil
}

// validateScanTarget accepts an address, a CIDR prefix, an "a-b" address range
// or a host name.
func validateScanTarget(target string) error {
	if target == "" || strings.ContainsAny(target, " \t\n") {
		return fmt.Errorf("scan target %q is not valid", target)
	}
	if _, err := netip.ParsePrefix(target); err == nil {
		return nil
	}
	if _, err := netip.ParseAddr(target); err == nil {
		return nil
	}
	if from, to, ok := strings.Cut(target, "-"); ok {
		a, errA := netip.ParseAddr(strings.TrimSpace(from))
		b, errB := netip.ParseAddr(strings.TrimSpace(to))
		if errA == nil && errB == nil {
			if b.Less(a) {
				return fmt.Errorf("scan target range %q ends before it starts", target)
			}
			return nil
		}
	}
	if strings.ContainsAny(target, "/:") {
		return fmt.Errorf("scan target %q is not valid", target)
	}
	return nil
}
