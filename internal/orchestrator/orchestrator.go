// Package orchestrator implements the collection orchestrator (C5): on each
// tick, ask the scheduler which active hosts are due, fan out bounded probe
// tasks, and publish successes to the bus. Grounded on
// collector/collection_orchestrator.py.
package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/noiseless47/optilab-collector/internal/bus"
	"github.com/noiseless47/optilab-collector/internal/probe"
	"github.com/noiseless47/optilab-collector/internal/scheduler"
	"github.com/noiseless47/optilab-collector/internal/sshpool"
	"github.com/noiseless47/optilab-collector/internal/store"
	"github.com/noiseless47/optilab-collector/internal/telemetry"
)

// Orchestrator drives one collection cycle per Tick call.
type Orchestrator struct {
	Store      *store.Store
	Pool       *sshpool.Pool
	Scheduler  *scheduler.Scheduler
	Bus        *bus.Client
	Runner     *probe.Runner
	Cred       sshpool.Credential
	Metrics    *telemetry.CollectorMetrics
	Log        *zap.Logger
	MaxWorkers int // default 5-10, per spec.md §4.5
}

// New constructs an Orchestrator with a default worker cap of 8.
func New(st *store.Store, pool *sshpool.Pool, sched *scheduler.Scheduler, busClient *bus.Client,
	cred sshpool.Credential, metrics *telemetry.CollectorMetrics, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		Store:      st,
		Pool:       pool,
		Scheduler:  sched,
		Bus:        busClient,
		Runner:     probe.NewRunner(),
		Cred:       cred,
		Metrics:    metrics,
		Log:        log,
		MaxWorkers: 8,
	}
}

// Tick performs one orchestrator cycle, per spec.md §4.5:
//  1. list active hosts
//  2. ask the scheduler which are due (unioned across tiers)
//  3. launch up to MaxWorkers concurrent probe tasks
//  4. wait for all tasks, then return
//
// ctx cancellation is consulted at the top of the cycle and between tasks,
// per spec.md §4.5/§5 — an in-flight probe always runs to completion.
func (o *Orchestrator) Tick(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	hosts, err := o.Store.ListActiveHosts(ctx)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		return nil
	}

	ids := make([]store.HostID, len(hosts))
	byID := make(map[store.HostID]store.Host, len(hosts))
	for i, h := range hosts {
		ids[i] = h.ID
		byID[h.ID] = h
	}

	var due []store.HostID
	for _, t := range scheduler.AllTiers {
		due = append(due, o.Scheduler.DueHosts(ids, t)...)
	}
	due = dedupe(due)

	maxWorkers := o.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	sem := semaphore.NewWeighted(int64(maxWorkers))

	for _, id := range due {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		host := byID[id]
		go func(h store.Host) {
			defer sem.Release(1)
			o.probeOne(ctx, h)
		}(host)
	}

	// Wait for all in-flight tasks by acquiring the full weight back. This
	// uses a background context so a cancelled ctx cannot cut the wait short.
	_ = sem.Acquire(context.Background(), int64(maxWorkers))
	return nil
}

func dedupe(ids []store.HostID) []store.HostID {
	seen := make(map[store.HostID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (o *Orchestrator) probeOne(ctx context.Context, host store.Host) {
	start := time.Now()

	client, err := o.Pool.Acquire(host.NetworkAddress, sshpool.DefaultPort, o.Cred)
	if err != nil {
		o.recordFailure(ctx, host.ID, "acquire: "+err.Error(), start)
		return
	}

	result := o.Runner.Run(client, probe.MetricsScript)
	if result.Err != nil {
		o.recordFailure(ctx, host.ID, "probe: "+result.Err.Error(), start)
		return
	}

	msg := bus.MetricMessage{
		Timestamp: time.Now().UTC(),
		SystemID:  host.ID.String(),
		Data:      json.RawMessage(result.JSON),
	}
	if err := o.Bus.PublishMetric(msg); err != nil {
		// Publish failure is non-fatal per spec.md §4.6/§7: the probe
		// itself succeeded, so the scheduler still sees a success.
		o.Log.Warn("publish metric failed", zap.String("host_id", host.ID.String()), zap.Error(err))
	}

	o.Scheduler.RecordSuccess(host.ID)
	if o.Metrics != nil {
		o.Metrics.RecordProbe(ctx, true, float64(time.Since(start).Milliseconds()))
	}
}

func (o *Orchestrator) recordFailure(ctx context.Context, id store.HostID, reason string, start time.Time) {
	health := o.Scheduler.RecordFailure(id, reason)
	o.Log.Warn("probe failed", zap.String("host_id", id.String()), zap.String("reason", reason), zap.String("health", string(health)))
	if o.Metrics != nil {
		o.Metrics.RecordProbe(ctx, false, float64(time.Since(start).Milliseconds()))
	}
}
