package database

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/netip"

	"github.com/island-mesh/island/internal/duckdb"
	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/models"
)

var orderByInsertion = duckdb.Query{OrderBy: "ordinal"}

type machineRow struct {
	ID                int64  `duckdb:"id,pk"`
	Ordinal           int64  `duckdb:"ordinal,immutable"`
	Island            bool   `duckdb:"island"`
	HardwareID        int64  `duckdb:"hardware_id"`
	Hostname          string `duckdb:"hostname"`
	DomainName        string `duckdb:"domain_name"`
	NetworkInterfaces string `duckdb:"network_interfaces"`
	Services          string `duckdb:"services"`
}

func (r *machineRow) model() (models.Machine, error) {
	m := models.Machine{
		ID:         int(r.ID),
		Island:     r.Island,
		HardwareID: r.HardwareID,
		Hostname:   r.Hostname,
		DomainName: r.DomainName,
	}
	if err := json.Unmarshal([]byte(r.NetworkInterfaces), &m.NetworkInterfaces); err != nil {
		return models.Machine{}, fmt.Errorf("machine %d interfaces: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Services), &m.Services); err != nil {
		return models.Machine{}, fmt.Errorf("machine %d services: %w", r.ID, err)
	}
	return m, nil
}

func newMachineRow(m models.Machine, ordinal int64) (*machineRow, error) {
	ifaces := m.NetworkInterfaces
	if ifaces == nil {
		ifaces = []netip.Prefix{}
	}
	ifaceJSON, err := json.Marshal(ifaces)
	if err != nil {
		return nil, err
	}

	services := m.Services
	if services == nil {
		services = map[models.SocketAddress]models.NetworkService{}
	}
	servicesJSON, err := json.Marshal(services)
	if err != nil {
		return nil, err
	}

	return &machineRow{
		ID:                int64(m.ID),
		Ordinal:           ordinal,
		Island:            m.Island,
		HardwareID:        m.HardwareID,
		Hostname:          m.Hostname,
		DomainName:        m.DomainName,
		NetworkInterfaces: string(ifaceJSON),
		Services:          string(servicesJSON),
	}, nil
}

// GetMachines returns every machine in insertion order.
func (d *Database) GetMachines(ctx context.Context) ([]models.Machine, error) {
	rows, err := d.machines.List(ctx, orderByInsertion)
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}

	out := make([]models.Machine, 0, len(rows))
	for _, row := range rows {
		m, err := row.model()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// GetMachineByID returns one machine or a NotFound error.
func (d *Database) GetMachineByID(ctx context.Context, id int) (models.Machine, error) {
	row, err := d.machines.Get(ctx, int64(id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return models.Machine{}, errors.NotFound("database.GetMachineByID", "machine %d not found", id)
	}
	if err != nil {
		return models.Machine{}, fmt.Errorf("failed to get machine: %w", err)
	}
	return row.model()
}

// UpsertMachine inserts or updates a machine, keeping its original position.
func (d *Database) UpsertMachine(ctx context.Context, machine models.Machine) error {
	row, err := newMachineRow(machine, d.nextOrdinal())
	if err != nil {
		return fmt.Errorf("failed to encode machine %d: %w", machine.ID, err)
	}
	if err := d.machines.Upsert(ctx, row); err != nil {
		return fmt.Errorf("failed to upsert machine: %w", err)
	}
	return nil
}

// UpsertMachines stores machines in one transaction, in the given order.
func (d *Database) UpsertMachines(ctx context.Context, machines []models.Machine) error {
	rows := make([]*machineRow, 0, len(machines))
	for _, m := range machines {
		row, err := newMachineRow(m, d.nextOrdinal())
		if err != nil {
			return fmt.Errorf("failed to encode machine %d: %w", m.ID, err)
		}
		rows = append(rows, row)
	}
	if err := d.machines.BatchUpsert(ctx, rows); err != nil {
		return fmt.Errorf("failed to upsert machines: %w", err)
	}
	return nil
}

// ResetMachines removes every machine except the island.
func (d *Database) ResetMachines(ctx context.Context) error {
	if err := d.machines.DeleteWhere(ctx, map[string]any{"island": false}); err != nil {
		return fmt.Errorf("failed to reset machines: %w", err)
	}
	return nil
}
