package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/island-mesh/island/internal/island/models"
)

type nodeRow struct {
	MachineID      int64  `duckdb:"machine_id,pk"`
	Ordinal        int64  `duckdb:"ordinal,immutable"`
	Connections    string `duckdb:"connections"`
	TCPConnections string `duckdb:"tcp_connections"`
}

// GetNodes returns every node in insertion order.
func (d *Database) GetNodes(ctx context.Context) ([]models.Node, error) {
	rows, err := d.nodes.List(ctx, orderByInsertion)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	out := make([]models.Node, 0, len(rows))
	for _, row := range rows {
		node := models.Node{MachineID: int(row.MachineID)}
		if err := json.Unmarshal([]byte(row.Connections), &node.Connections); err != nil {
			return nil, fmt.Errorf("node %d connections: %w", row.MachineID, err)
		}
		if err := json.Unmarshal([]byte(row.TCPConnections), &node.TCPConnections); err != nil {
			return nil, fmt.Errorf("node %d tcp connections: %w", row.MachineID, err)
		}
		out = append(out, node)
	}
	return out, nil
}

// UpsertNode replaces the node of node.MachineID, keeping its original position.
func (d *Database) UpsertNode(ctx context.Context, node models.Node) error {
	conns := node.Connections
	if conns == nil {
		conns = map[string]models.CommunicationTypes{}
	}
	connJSON, err := json.Marshal(conns)
	if err != nil {
		return fmt.Errorf("failed to encode node %d: %w", node.MachineID, err)
	}

	tcp := node.TCPConnections
	if tcp == nil {
		tcp = map[int][]models.SocketAddress{}
	}
	tcpJSON, err := json.Marshal(tcp)
	if err != nil {
		return fmt.Errorf("failed to encode node %d: %w", node.MachineID, err)
	}

	row := &nodeRow{
		MachineID:      int64(node.MachineID),
		Ordinal:        d.nextOrdinal(),
		Connections:    string(connJSON),
		TCPConnections: string(tcpJSON),
	}
	if err := d.nodes.Upsert(ctx, row); err != nil {
		return fmt.Errorf("failed to upsert node: %w", err)
	}
	return nil
}

// ResetNodes removes every node.
func (d *Database) ResetNodes(ctx context.Context) error {
	if err := d.nodes.DeleteWhere(ctx, nil); err != nil {
		return fmt.Errorf("failed to reset nodes: %w", err)
	}
	return nil
}
