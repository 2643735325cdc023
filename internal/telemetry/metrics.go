package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// CollectorMetrics are the collector's own instruments. The orchestrator
// (C5) records PollLatency, ProbeFailures and ProbeSuccesses through
// RecordProbe; PoolActive is created here but nothing in this module
// updates it.
type CollectorMetrics struct {
	PollLatency    metric.Float64Histogram
	ProbeFailures  metric.Int64Counter
	ProbeSuccesses metric.Int64Counter
	PoolActive     metric.Int64UpDownCounter
}

// NewCollectorMetrics creates instruments off the globally installed meter
// provider (a no-op meter if telemetry.Init was never called, so this is
// always safe).
func NewCollectorMetrics() (*CollectorMetrics, error) {
	meter := otel.Meter("optilab-collector")

	pollLatency, err := meter.Float64Histogram(
		"collector.poll.latency_ms",
		metric.WithDescription("remote probe round-trip latency in milliseconds"),
	)
	if err != nil {
		return nil, err
	}
	probeFailures, err := meter.Int64Counter(
		"collector.probe.failures",
		metric.WithDescription("count of failed remote probes"),
	)
	if err != nil {
		return nil, err
	}
	probeSuccesses, err := meter.Int64Counter(
		"collector.probe.successes",
		metric.WithDescription("count of successful remote probes"),
	)
	if err != nil {
		return nil, err
	}
	poolActive, err := meter.Int64UpDownCounter(
		"collector.pool.active_sessions",
		metric.WithDescription("number of warm sessions currently held by the connection pool"),
	)
	if err != nil {
		return nil, err
	}

	return &CollectorMetrics{
		PollLatency:    pollLatency,
		ProbeFailures:  probeFailures,
		ProbeSuccesses: probeSuccesses,
		PoolActive:     poolActive,
	}, nil
}

// RecordProbe records the outcome and latency of one probe attempt.
func (m *CollectorMetrics) RecordProbe(ctx context.Context, ok bool, latencyMS float64) {
	if m == nil {
		return
	}
	m.PollLatency.Record(ctx, latencyMS)
	if ok {
		m.ProbeSuccesses.Add(ctx, 1)
	} else {
		m.ProbeFailures.Add(ctx, 1)
	}
}
