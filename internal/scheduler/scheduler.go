// Package scheduler implements the adaptive per-host polling scheduler
// (C4): a health state machine plus tiered interval computation and
// due-host selection, grounded on collector/adaptive_scheduler.py.
package scheduler

import (
	"sync"
	"time"

	"github.com/noiseless47/optilab-collector/internal/store"
)

// Health is one of the four states a host can be in, derived purely from
// its consecutive failure count (spec.md §4.4).
type Health string

const (
	Healthy  Health = "healthy"
	Degraded Health = "degraded"
	Offline  Health = "offline"
	Dead     Health = "dead"
)

// multiplier maps a Health state onto the effective-interval multiplier.
var multiplier = map[Health]int{
	Healthy:  1,
	Degraded: 2,
	Offline:  12,
	Dead:     288,
}

// healthFromFailures derives the health state from a consecutive-failure
// count per the boundaries in spec.md §4.4 / §8:
// 0 → HEALTHY, 1-3 → DEGRADED, 4-10 → OFFLINE, >10 → DEAD.
func healthFromFailures(n int) Health {
	switch {
	case n == 0:
		return Healthy
	case n <= 3:
		return Degraded
	case n <= 10:
		return Offline
	default:
		return Dead
	}
}

// HostHealth is the collector-resident (never persisted) state for one
// host, per spec.md §3.
type HostHealth struct {
	HostID             store.HostID
	ConsecutiveFailures int
	TotalAttempts       int
	TotalSuccesses      int
	LastAttempt         *time.Time
	LastSuccess         *time.Time
	Health              Health
}

// snapshot returns a value copy safe to hand to callers outside the lock.
func (h *HostHealth) snapshot() HostHealth {
	cp := *h
	return cp
}

// Scheduler is the adaptive per-host polling scheduler. All mutations go
// through a single mutex guarding the state map — the simplest design
// spec.md §5 explicitly allows ("a map-level lock (or sharded locks by host
// id)").
type Scheduler struct {
	mu     sync.Mutex
	states map[store.HostID]*HostHealth

	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

// New constructs an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		states: make(map[store.HostID]*HostHealth),
		now:    time.Now,
	}
}

// stateFor returns (creating if absent) the HostHealth entry for id. Must be
// called with mu held. A HostHealth entry is lazily created on first
// reference and never deleted — only reset — per spec.md §3.
func (s *Scheduler) stateFor(id store.HostID) *HostHealth {
	st, ok := s.states[id]
	if !ok {
		st = &HostHealth{HostID: id, Health: Healthy}
		s.states[id] = st
	}
	return st
}

// State returns a snapshot of a host's current health entry.
func (s *Scheduler) State(id store.HostID) HostHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateFor(id).snapshot()
}

// RecordSuccess resets the failure counter and forces HEALTHY, per
// spec.md §4.4 and invariant 2 in §8.
func (s *Scheduler) RecordSuccess(id store.HostID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stateFor(id)
	now := s.now()
	st.ConsecutiveFailures = 0
	st.TotalSuccesses++
	st.TotalAttempts++
	st.LastSuccess = &now
	st.LastAttempt = &now
	st.Health = Healthy
}

// RecordFailure increments the failure counter and recomputes health from
// the thresholds in spec.md §4.4. reason is informational only (logged by
// the caller); the scheduler does not store it.
func (s *Scheduler) RecordFailure(id store.HostID, reason string) Health {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stateFor(id)
	now := s.now()
	st.ConsecutiveFailures++
	st.TotalAttempts++
	st.LastAttempt = &now
	st.Health = healthFromFailures(st.ConsecutiveFailures)
	return st.Health
}

// EffectiveInterval computes base(T) × multiplier(state(h)) exactly, per
// invariant 4 in spec.md §8.
func (s *Scheduler) EffectiveInterval(id store.HostID, t Tier) time.Duration {
	s.mu.Lock()
	health := s.stateFor(id).Health
	s.mu.Unlock()
	return BaseInterval(t) * time.Duration(multiplier[health])
}

// ShouldPoll reports whether enough time has passed since the host's last
// attempt for tier t, or the host has never been attempted. The check and
// the later update are separate lock acquisitions: the last-attempt time
// only moves when the caller records the outcome with RecordSuccess or
// RecordFailure.
func (s *Scheduler) ShouldPoll(id store.HostID, t Tier) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stateFor(id)
	if st.LastAttempt == nil {
		return true
	}
	interval := BaseInterval(t) * time.Duration(multiplier[st.Health])
	return s.now().Sub(*st.LastAttempt) >= interval
}

// MetricsDue returns the union of metric identifiers across every tier
// whose due-check is currently true for host id, per spec.md §4.4.
func (s *Scheduler) MetricsDue(id store.HostID) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range AllTiers {
		if !s.ShouldPoll(id, t) {
			continue
		}
		for _, m := range TierMetrics(t) {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// DueHosts filters hosts by ShouldPoll for tier t — the entry point the
// collection orchestrator (C5) uses per poll cycle.
func (s *Scheduler) DueHosts(hosts []store.HostID, t Tier) []store.HostID {
	var due []store.HostID
	for _, id := range hosts {
		if s.ShouldPoll(id, t) {
			due = append(due, id)
		}
	}
	return due
}

// Reset forces a host back to HEALTHY with zero failures — the manual
// operator-recovery path in spec.md §4.4. A host never referenced before is
// a no-op (there is nothing to reset).
func (s *Scheduler) Reset(id store.HostID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[id]; ok {
		st.ConsecutiveFailures = 0
		st.Health = Healthy
	}
}

// Stats summarizes the scheduler's population, per spec.md §4.4.
type Stats struct {
	TotalSystems int
	Healthy      int
	Degraded     int
	Offline      int
	Dead         int
	TotalAttempts  int
	TotalSuccesses int
	// SuccessRate is TotalSuccesses/TotalAttempts, or zero when no attempts
	// have been recorded.
	SuccessRate float64
}

// Statistics computes a Stats snapshot over every host the scheduler has
// ever seen.
func (s *Scheduler) Statistics() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	st.TotalSystems = len(s.states)
	for _, h := range s.states {
		switch h.Health {
		case Healthy:
			st.Healthy++
		case Degraded:
			st.Degraded++
		case Offline:
			st.Offline++
		case Dead:
			st.Dead++
		}
		st.TotalAttempts += h.TotalAttempts
		st.TotalSuccesses += h.TotalSuccesses
	}
	if st.TotalAttempts > 0 {
		st.SuccessRate = float64(st.TotalSuccesses) / float64(st.TotalAttempts)
	}
	return st
}
