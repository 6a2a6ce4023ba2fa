package models

import (
	"fmt"
	"net/netip"
)

// SocketAddress is an IP and port pair, e.g. an agent's command and control server.
type SocketAddress struct {
	IP   netip.Addr
	Port uint16
}

// ParseSocketAddress parses "ip:port" (or "[v6]:port").
func ParseSocketAddress(s string) (SocketAddress, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return SocketAddress{}, fmt.Errorf("invalid socket address %q: %w", s, err)
	}
	return SocketAddress{IP: ap.Addr(), Port: ap.Port()}, nil
}

func (s SocketAddress) String() string {
	return netip.AddrPortFrom(s.IP, s.Port).String()
}

// IsValid reports whether the address has been set.
func (s SocketAddress) IsValid() bool {
	return s.IP.IsValid()
}

// Compare orders socket addresses by IP, then port.
func (s SocketAddress) Compare(o SocketAddress) int {
	return netip.AddrPortFrom(s.IP, s.Port).Compare(netip.AddrPortFrom(o.IP, o.Port))
}

// MarshalText lets SocketAddress serve as a JSON string and a JSON map key.
func (s SocketAddress) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return []byte{}, nil
	}
	return []byte(s.String()), nil
}

func (s *SocketAddress) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*s = SocketAddress{}
		return nil
	}
	parsed, err := ParseSocketAddress(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
