// Package ingest implements the ingest worker (C7): consumes metrics and
// discovery messages off the bus, writes them to the store, and tracks
// throughput statistics. Grounded on collector/ingest_worker.py.
package ingest

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noiseless47/optilab-collector/internal/bus"
	"github.com/noiseless47/optilab-collector/internal/probe"
	"github.com/noiseless47/optilab-collector/internal/store"
)

// Worker processes messages from one bus.Consumer and writes results to the
// store. A Worker handles exactly one subject; run separate Workers (and
// separate Consumers, per spec.md §5's no-shared-channel rule) for metrics
// and discovery.
type Worker struct {
	Store *store.Store
	Log   *zap.Logger

	startedAt time.Time
	processed int64
	errors    int64
}

// NewWorker constructs a Worker bound to st.
func NewWorker(st *store.Store, log *zap.Logger) *Worker {
	return &Worker{Store: st, Log: log, startedAt: time.Now()}
}

// HandleMetric implements bus.Handler for the metrics subject: insert the
// sample, update last_seen/status, per spec.md §4.7. Returns false (nack +
// requeue) on any transient store failure.
func (w *Worker) HandleMetric(payload []byte) bool {
	var msg bus.MetricMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		// Should not happen: bus.Consumer already dead-lettered non-object
		// payloads via bus.IsMalformed before calling this handler. A type
		// mismatch here is still a permanent failure, but it is surfaced as
		// a processing error (nack with requeue).
		atomic.AddInt64(&w.errors, 1)
		w.Log.Error("metric message decode failed", zap.Error(err))
		return false
	}

	hostID, err := parseHostID(msg.SystemID)
	if err != nil {
		atomic.AddInt64(&w.errors, 1)
		w.Log.Error("metric message has invalid system_id", zap.String("system_id", msg.SystemID), zap.Error(err))
		return false
	}

	m, err := probe.ParseMetrics(msg.Data)
	if err != nil {
		atomic.AddInt64(&w.errors, 1)
		w.Log.Error("metric payload malformed", zap.Error(err))
		return false
	}

	ctx := context.Background()
	sample := toSample(hostID, msg.Timestamp, m)

	// Insert and last-seen bump happen in one transaction, per spec.md §4.7
	// ("each message is one DB transaction") and invariant 7 in §8: a
	// requeued message must imply no row was written for that delivery.
	if _, err := w.Store.InsertMetricSampleAndMarkHostSeen(ctx, sample, store.HostActive); err != nil {
		// Per spec.md §4.7: "implies a matching row exists in the store" —
		// an unknown host is a foreign-key-shaped failure and must requeue
		// until the owning row exists (scenario 4 in spec.md §8).
		atomic.AddInt64(&w.errors, 1)
		w.Log.Warn("metric transaction failed, will requeue", zap.String("host_id", hostID.String()), zap.Error(err))
		return false
	}

	atomic.AddInt64(&w.processed, 1)
	return true
}

// HandleDiscovery implements bus.Handler for the discovery subject: each
// listed system is upserted with discovered->active transition semantics,
// per spec.md §4.7.
func (w *Worker) HandleDiscovery(payload []byte) bool {
	var msg bus.DiscoveryMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		atomic.AddInt64(&w.errors, 1)
		w.Log.Error("discovery message decode failed", zap.Error(err))
		return false
	}

	params := make([]store.UpsertHostParams, len(msg.Systems))
	for i, sys := range msg.Systems {
		params[i] = store.UpsertHostParams{
			NetworkAddress:  sys.NetworkAddress,
			HardwareAddress: sys.HardwareAddress,
			Hostname:        sys.Hostname,
			StatusOnInsert:  store.HostDiscovered,
			StatusOnUpdate:  store.HostActive,
		}
	}

	// The whole batch is one DB transaction per spec.md §4.7: a partial
	// failure must roll back every upsert in the message, not just the one
	// that failed, so a requeue doesn't redeliver against half-written state.
	ctx := context.Background()
	if _, err := w.Store.UpsertHostsTx(ctx, params); err != nil {
		atomic.AddInt64(&w.errors, 1)
		w.Log.Warn("discovery batch upsert failed, will requeue", zap.Int("systems", len(params)), zap.Error(err))
		return false
	}

	atomic.AddInt64(&w.processed, 1)
	return true
}

// HandleAlert implements bus.Handler for the alerts subject: opaque,
// logged, always acked, per spec.md §4.7.
func (w *Worker) HandleAlert(payload []byte) bool {
	var msg bus.AlertMessage
	if err := json.Unmarshal(payload, &msg); err == nil {
		w.Log.Info("alert received", zap.ByteString("payload", msg.Payload))
	} else {
		w.Log.Info("alert received (raw)", zap.ByteString("payload", payload))
	}
	atomic.AddInt64(&w.processed, 1)
	return true
}

// Stats reports processed count, error count, and throughput since start.
type Stats struct {
	Processed     int64
	Errors        int64
	MessagesPerSec float64
}

// Stats computes a point-in-time Stats snapshot.
func (w *Worker) Stats() Stats {
	processed := atomic.LoadInt64(&w.processed)
	elapsed := time.Since(w.startedAt).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(processed) / elapsed
	}
	return Stats{
		Processed:      processed,
		Errors:         atomic.LoadInt64(&w.errors),
		MessagesPerSec: rate,
	}
}

func toSample(hostID store.HostID, ts time.Time, m probe.Metrics) store.MetricSample {
	var uptime *int64
	if m.UptimeSeconds != nil {
		u := int64(*m.UptimeSeconds)
		uptime = &u
	}
	return store.MetricSample{
		HostID:              hostID,
		Timestamp:           ts,
		CPUPercent:          m.CPUPercent,
		CPUTemperature:      m.CPUTemperature,
		RAMPercent:          m.RAMPercent,
		DiskPercent:         m.DiskPercent,
		DiskReadMBps:        m.DiskReadMBps,
		DiskWriteMBps:       m.DiskWriteMBps,
		NetworkSentMBps:     m.NetworkSentMBps,
		NetworkRecvMBps:     m.NetworkRecvMBps,
		GPUPercent:          m.GPUPercent,
		GPUMemoryUsedGB:     m.GPUMemoryUsedGB,
		GPUTemperature:      m.GPUTemperature,
		UptimeSeconds:       uptime,
		LoggedInUsers:       m.LoggedInUsers,
		CollectionMethod:    "ssh",
	}
}
