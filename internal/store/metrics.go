package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// InsertMetricSample inserts one MetricSample against the pool directly
// (no surrounding transaction). Duplicate (host_id, timestamp) pairs are
// swallowed by ON CONFLICT DO NOTHING per spec.md §4.7 — this is not a
// failure, it is the idempotency the ingest worker relies on when a message
// is redelivered after a prior partial write.
//
// Returns whether a row was actually inserted (false on duplicate).
func (s *Store) InsertMetricSample(ctx context.Context, m MetricSample) (bool, error) {
	return insertMetricSample(ctx, s.pool, m)
}

func insertMetricSample(ctx context.Context, db dbtx, m MetricSample) (bool, error) {
	tag, err := db.Exec(ctx, `
		INSERT INTO usage_metrics (
			host_id, "timestamp", cpu_percent, cpu_temperature, ram_percent,
			disk_percent, disk_read_mbps, disk_write_mbps,
			network_sent_mbps, network_recv_mbps,
			gpu_percent, gpu_memory_used_gb, gpu_temperature,
			uptime_seconds, logged_in_users, collection_latency_ms, collection_method
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
		ON CONFLICT (host_id, "timestamp") DO NOTHING
	`,
		m.HostID, m.Timestamp, m.CPUPercent, m.CPUTemperature, m.RAMPercent,
		m.DiskPercent, m.DiskReadMBps, m.DiskWriteMBps,
		m.NetworkSentMBps, m.NetworkRecvMBps,
		m.GPUPercent, m.GPUMemoryUsedGB, m.GPUTemperature,
		m.UptimeSeconds, m.LoggedInUsers, m.CollectionLatencyMS, m.CollectionMethod,
	)
	if err != nil {
		return false, fmt.Errorf("insert metric sample: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertMetricSampleAndMarkHostSeen performs the two writes a `metric`
// message requires — the sample insert and the host's last_seen/status
// bump — inside a single transaction, per spec.md §4.7 and invariant 7 in
// §8: a nacked+requeued message must imply no row was written for that
// delivery. Running these as two independent pool.Exec calls would let the
// sample commit while the host update fails transiently, leaving a row
// behind despite the worker reporting failure; WithTx rules that out.
func (s *Store) InsertMetricSampleAndMarkHostSeen(ctx context.Context, m MetricSample, status HostStatus) (bool, error) {
	var inserted bool
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		inserted, err = insertMetricSample(ctx, tx, m)
		if err != nil {
			return err
		}
		return markHostSeen(ctx, tx, m.HostID, status)
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}
