package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// UpsertHostParams carries the mutable, upsertable fields of a Host.
// NetworkAddress is the natural key. On a repeat sighting, hostname,
// hardware address, department, lab and inventory are overwritten by each
// non-nil value given here (nil keeps the stored value); status and
// last_seen are always refreshed.
type UpsertHostParams struct {
	NetworkAddress  string
	HardwareAddress *string
	Hostname        *string
	DeptID          *DeptID
	LabID           *LabID
	Inventory       Inventory
	// StatusOnInsert is the status a brand-new row gets.
	StatusOnInsert HostStatus
	// StatusOnUpdate is the status an existing row transitions to on every
	// subsequent sighting. Per spec.md §4.7, a host seen via the discovery
	// queue message starts 'discovered' and becomes 'active' on the next
	// sighting; a host identified directly by the discovery pipeline (§4.3)
	// goes straight to 'active' for both.
	StatusOnUpdate HostStatus
}

// UpsertHost performs the idempotent upsert described in spec.md §4.3 step 5:
// insert-or-update keyed on network_address, preserving first_seen and
// advancing last_seen. Returns the resulting Host and whether the row was a
// brand-new insert (used by callers that only want to react to new hosts).
func (s *Store) UpsertHost(ctx context.Context, p UpsertHostParams) (Host, bool, error) {
	return upsertHost(ctx, s.pool, p)
}

// UpsertHostsTx upserts every entry in params inside a single transaction,
// per spec.md §4.7: a `discovery` message is one DB transaction, so a
// failure partway through a multi-host batch must roll back every upsert in
// it rather than leave some hosts written and others not (the worker then
// returns false and the whole message is redelivered).
func (s *Store) UpsertHostsTx(ctx context.Context, params []UpsertHostParams) ([]Host, error) {
	hosts := make([]Host, 0, len(params))
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		hosts = hosts[:0]
		for _, p := range params {
			h, _, err := upsertHost(ctx, tx, p)
			if err != nil {
				return err
			}
			hosts = append(hosts, h)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hosts, nil
}

func upsertHost(ctx context.Context, db dbtx, p UpsertHostParams) (Host, bool, error) {
	id := NewHostID()
	now := time.Now().UTC()

	row := db.QueryRow(ctx, `
		INSERT INTO systems (
			id, network_address, hardware_address, hostname, department_id, lab_id,
			cpu_model, cpu_cores, ram_total_gb, disk_total_gb, gpu_model, gpu_memory_gb,
			status, first_seen, last_seen
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14
		)
		ON CONFLICT (network_address) DO UPDATE SET
			hostname         = COALESCE(EXCLUDED.hostname, systems.hostname),
			hardware_address = COALESCE(EXCLUDED.hardware_address, systems.hardware_address),
			department_id    = COALESCE(EXCLUDED.department_id, systems.department_id),
			lab_id           = COALESCE(EXCLUDED.lab_id, systems.lab_id),
			cpu_model        = COALESCE(EXCLUDED.cpu_model, systems.cpu_model),
			cpu_cores        = COALESCE(EXCLUDED.cpu_cores, systems.cpu_cores),
			ram_total_gb     = COALESCE(EXCLUDED.ram_total_gb, systems.ram_total_gb),
			disk_total_gb    = COALESCE(EXCLUDED.disk_total_gb, systems.disk_total_gb),
			gpu_model        = COALESCE(EXCLUDED.gpu_model, systems.gpu_model),
			gpu_memory_gb    = COALESCE(EXCLUDED.gpu_memory_gb, systems.gpu_memory_gb),
			status           = $15,
			last_seen        = $14
		RETURNING id, network_address, hardware_address, hostname, department_id, lab_id,
			cpu_model, cpu_cores, ram_total_gb, disk_total_gb, gpu_model, gpu_memory_gb,
			status, first_seen, last_seen, (first_seen = $14) AS was_inserted
	`,
		id, p.NetworkAddress, p.HardwareAddress, p.Hostname, p.DeptID, p.LabID,
		p.Inventory.CPUModel, p.Inventory.CPUCores, p.Inventory.RAMTotalGB, p.Inventory.DiskTotalGB,
		p.Inventory.GPUModel, p.Inventory.GPUMemoryGB,
		p.StatusOnInsert, now, p.StatusOnUpdate,
	)

	var h Host
	var wasInserted bool
	if err := row.Scan(
		&h.ID, &h.NetworkAddress, &h.HardwareAddress, &h.Hostname, &h.DeptID, &h.LabID,
		&h.Inventory.CPUModel, &h.Inventory.CPUCores, &h.Inventory.RAMTotalGB, &h.Inventory.DiskTotalGB,
		&h.Inventory.GPUModel, &h.Inventory.GPUMemoryGB,
		&h.Status, &h.FirstSeen, &h.LastSeen, &wasInserted,
	); err != nil {
		return Host{}, false, fmt.Errorf("upsert host %s: %w", p.NetworkAddress, err)
	}
	return h, wasInserted, nil
}

// GetHostByAddress looks up a host by its unique network address.
func (s *Store) GetHostByAddress(ctx context.Context, addr string) (Host, error) {
	return s.scanOneHost(ctx, `WHERE network_address = $1`, addr)
}

// GetHost looks up a host by ID.
func (s *Store) GetHost(ctx context.Context, id HostID) (Host, error) {
	return s.scanOneHost(ctx, `WHERE id = $1`, id)
}

func (s *Store) scanOneHost(ctx context.Context, where string, arg any) (Host, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, network_address, hardware_address, hostname, department_id, lab_id,
			cpu_model, cpu_cores, ram_total_gb, disk_total_gb, gpu_model, gpu_memory_gb,
			status, first_seen, last_seen
		FROM systems `+where, arg)

	var h Host
	if err := row.Scan(
		&h.ID, &h.NetworkAddress, &h.HardwareAddress, &h.Hostname, &h.DeptID, &h.LabID,
		&h.Inventory.CPUModel, &h.Inventory.CPUCores, &h.Inventory.RAMTotalGB, &h.Inventory.DiskTotalGB,
		&h.Inventory.GPUModel, &h.Inventory.GPUMemoryGB,
		&h.Status, &h.FirstSeen, &h.LastSeen,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Host{}, ErrNotFound
		}
		return Host{}, fmt.Errorf("get host: %w", err)
	}
	return h, nil
}

// ListActiveHosts returns every host whose status is 'active' — the
// population the collection orchestrator (C5) polls from.
func (s *Store) ListActiveHosts(ctx context.Context) ([]Host, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, network_address, hardware_address, hostname, department_id, lab_id,
			cpu_model, cpu_cores, ram_total_gb, disk_total_gb, gpu_model, gpu_memory_gb,
			status, first_seen, last_seen
		FROM systems WHERE status = $1`, HostActive)
	if err != nil {
		return nil, fmt.Errorf("list active hosts: %w", err)
	}
	defer rows.Close()

	var out []Host
	for rows.Next() {
		var h Host
		if err := rows.Scan(
			&h.ID, &h.NetworkAddress, &h.HardwareAddress, &h.Hostname, &h.DeptID, &h.LabID,
			&h.Inventory.CPUModel, &h.Inventory.CPUCores, &h.Inventory.RAMTotalGB, &h.Inventory.DiskTotalGB,
			&h.Inventory.GPUModel, &h.Inventory.GPUMemoryGB,
			&h.Status, &h.FirstSeen, &h.LastSeen,
		); err != nil {
			return nil, fmt.Errorf("scan host: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// MarkHostSeen updates last_seen and status on a host row (used by the
// ingest worker when writing a metric sample, per spec.md §4.7).
func (s *Store) MarkHostSeen(ctx context.Context, id HostID, status HostStatus) error {
	return markHostSeen(ctx, s.pool, id, status)
}

func markHostSeen(ctx context.Context, db dbtx, id HostID, status HostStatus) error {
	tag, err := db.Exec(ctx,
		`UPDATE systems SET last_seen = now(), status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("mark host seen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark host seen %s: %w", id, ErrNotFound)
	}
	return nil
}
