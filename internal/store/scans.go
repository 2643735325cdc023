package store

import (
	"context"
	"fmt"
	"time"
)

// StartDiscoveryScan records the start of a discovery run, per spec.md §4.3
// step 6: "created at scan start, closed on scan completion".
func (s *Store) StartDiscoveryScan(ctx context.Context, dept DeptID, cidr string) (DiscoveryScan, error) {
	id := NewScanID()
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO discovery_scans (id, department_id, cidr, started_at, status, host_count)
		VALUES ($1, $2, $3, $4, $5, 0)
	`, id, dept, cidr, now, ScanRunning)
	if err != nil {
		return DiscoveryScan{}, fmt.Errorf("start discovery scan: %w", err)
	}
	return DiscoveryScan{
		ID: id, DeptID: dept, CIDR: cidr, StartedAt: now, Status: ScanRunning,
	}, nil
}

// FinishDiscoveryScan closes a DiscoveryScan with a terminal status. errMsg
// is nil on success; on failure it carries the exception message, per
// spec.md §4.3 step 6.
func (s *Store) FinishDiscoveryScan(ctx context.Context, id ScanID, status ScanStatus, hostCount int, errMsg *string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE discovery_scans SET ended_at = $2, status = $3, host_count = $4, error_message = $5
		WHERE id = $1
	`, id, now, status, hostCount, errMsg)
	if err != nil {
		return fmt.Errorf("finish discovery scan %s: %w", id, err)
	}
	return nil
}
