// Package controlloop implements the outer driver of the process-wide
// lifecycle (C8): it interleaves discovery and collection cycles and stops
// when its context is cancelled. Loading configuration, opening the store
// and turning signals into cancellation are done by cmd/collector. Grounded
// on collector/control_loop.py.
package controlloop

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noiseless47/optilab-collector/internal/discovery"
	"github.com/noiseless47/optilab-collector/internal/orchestrator"
)

const tickInterval = 1 * time.Second

// Config carries the two cadence intervals spec.md §4.8 names.
type Config struct {
	DiscoveryInterval  time.Duration // default 300s
	CollectionInterval time.Duration // default 10s
}

// Loop is the single outer driver: a 1s-granularity tick that fires a
// discovery pass and/or a collection cycle once their respective interval
// has elapsed.
type Loop struct {
	Discovery    *discovery.Pipeline
	Orchestrator *orchestrator.Orchestrator
	Log          *zap.Logger
	Cfg          Config

	lastDiscovery  time.Time
	lastCollection time.Time
}

// New constructs a Loop. Both "last" timestamps start at the zero time, so
// the very first tick runs both a discovery pass and a collection cycle.
func New(d *discovery.Pipeline, o *orchestrator.Orchestrator, log *zap.Logger, cfg Config) *Loop {
	if cfg.DiscoveryInterval <= 0 {
		cfg.DiscoveryInterval = 300 * time.Second
	}
	if cfg.CollectionInterval <= 0 {
		cfg.CollectionInterval = 10 * time.Second
	}
	return &Loop{Discovery: d, Orchestrator: o, Log: log, Cfg: cfg}
}

// Run blocks, ticking every second, until ctx is cancelled (typically by a
// SIGINT/SIGTERM handler installed by the caller). It returns once the
// current iteration's in-flight work completes — per spec.md §4.8/§8
// scenario 5, in-flight probes finish, pending ones are skipped.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.Log.Info("control loop shutting down")
			return nil
		case now := <-ticker.C:
			l.tick(ctx, now)
		}
	}
}

func (l *Loop) tick(ctx context.Context, now time.Time) {
	if ctx.Err() != nil {
		return
	}

	if l.lastDiscovery.IsZero() || now.Sub(l.lastDiscovery) >= l.Cfg.DiscoveryInterval {
		if err := l.Discovery.RunAll(ctx); err != nil {
			l.Log.Error("discovery pass failed", zap.Error(err))
		}
		l.lastDiscovery = now
	}

	if ctx.Err() != nil {
		return
	}

	if l.lastCollection.IsZero() || now.Sub(l.lastCollection) >= l.Cfg.CollectionInterval {
		if err := l.Orchestrator.Tick(ctx); err != nil {
			l.Log.Error("collection cycle failed", zap.Error(err))
		}
		l.lastCollection = now
	}
}
