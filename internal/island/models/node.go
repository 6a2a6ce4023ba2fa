package models

import "maps"

// Node holds the outbound connections of one machine.
// Connections is keyed by the target machine ID in decimal string form.
type Node struct {
	MachineID      int                           `json:"machine_id"`
	Connections    map[string]CommunicationTypes `json:"connections"`
	TCPConnections map[int][]SocketAddress       `json:"tcp_connections,omitempty"`
}

// Clone returns a deep copy.
func (n Node) Clone() Node {
	conns := make(map[string]CommunicationTypes, len(n.Connections))
	for k, v := range n.Connections {
		conns[k] = v.Clone()
	}
	n.Connections = conns
	if n.TCPConnections != nil {
		tcp := maps.Clone(n.TCPConnections)
		for k, v := range tcp {
			tcp[k] = append([]SocketAddress(nil), v...)
		}
		n.TCPConnections = tcp
	}
	return n
}
