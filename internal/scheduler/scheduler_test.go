package scheduler

import (
	"testing"
	"time"

	"github.com/noiseless47/optilab-collector/internal/store"
)

func TestRecordSuccessForcesHealthy(t *testing.T) {
	s := New()
	id := store.NewHostID()

	for i := 0; i < 5; i++ {
		s.RecordFailure(id, "timeout")
	}
	s.RecordSuccess(id)

	st := s.State(id)
	if st.Health != Healthy {
		t.Fatalf("expected HEALTHY after success, got %s", st.Health)
	}
	if st.ConsecutiveFailures != 0 {
		t.Fatalf("expected zero consecutive failures, got %d", st.ConsecutiveFailures)
	}
}

func TestFailureThresholds(t *testing.T) {
	cases := []struct {
		failures int
		want     Health
	}{
		{1, Degraded},
		{3, Degraded},
		{4, Offline},
		{10, Offline},
		{11, Dead},
	}
	for _, c := range cases {
		s := New()
		id := store.NewHostID()
		var got Health
		for i := 0; i < c.failures; i++ {
			got = s.RecordFailure(id, "probe failed")
		}
		if got != c.want {
			t.Errorf("after %d failures: got %s, want %s", c.failures, got, c.want)
		}
	}
}

func TestEffectiveIntervalMultipliers(t *testing.T) {
	s := New()
	id := store.NewHostID()

	if got := s.EffectiveInterval(id, TierMedium); got != 300*time.Second {
		t.Errorf("healthy medium: got %v, want 300s", got)
	}

	for i := 0; i < 10; i++ {
		s.RecordFailure(id, "x")
	}
	if got := s.EffectiveInterval(id, TierMedium); got != 3600*time.Second {
		t.Errorf("offline (10 failures) medium: got %v, want 3600s", got)
	}

	s.RecordFailure(id, "x")
	if got := s.EffectiveInterval(id, TierMedium); got != 86400*time.Second {
		t.Errorf("dead (11 failures) medium: got %v, want 86400s", got)
	}
}

func TestShouldPollFirstAttemptAlwaysTrue(t *testing.T) {
	s := New()
	id := store.NewHostID()
	if !s.ShouldPoll(id, TierHigh) {
		t.Fatalf("expected first-ever poll to be due")
	}
}

func TestShouldPollRespectsInterval(t *testing.T) {
	s := New()
	id := store.NewHostID()

	fixed := time.Now()
	s.now = func() time.Time { return fixed }
	s.RecordSuccess(id) // sets last_attempt = fixed

	s.now = func() time.Time { return fixed.Add(29 * time.Second) }
	if s.ShouldPoll(id, TierHigh) {
		t.Fatalf("expected not due before the 30s HIGH tier interval elapses")
	}

	s.now = func() time.Time { return fixed.Add(30 * time.Second) }
	if !s.ShouldPoll(id, TierHigh) {
		t.Fatalf("expected due once the 30s HIGH tier interval elapses")
	}
}

func TestMetricsDueUnion(t *testing.T) {
	s := New()
	id := store.NewHostID()
	fixed := time.Now()
	s.now = func() time.Time { return fixed }
	s.RecordSuccess(id)

	s.now = func() time.Time { return fixed.Add(30 * time.Second) }
	due := toSet(s.MetricsDue(id))
	wantHigh := toSet(TierMetrics(TierHigh))
	if !setsEqual(due, wantHigh) {
		t.Errorf("at t=30s: got %v, want exactly HIGH tier metrics %v", due, wantHigh)
	}

	s.now = func() time.Time { return fixed.Add(300 * time.Second) }
	due = toSet(s.MetricsDue(id))
	wantHighMedium := union(toSet(TierMetrics(TierHigh)), toSet(TierMetrics(TierMedium)))
	if !setsEqual(due, wantHighMedium) {
		t.Errorf("at t=300s: got %v, want HIGH ∪ MEDIUM %v", due, wantHighMedium)
	}

	s.now = func() time.Time { return fixed.Add(3600 * time.Second) }
	due = toSet(s.MetricsDue(id))
	wantAll := union(wantHighMedium, toSet(TierMetrics(TierLow)))
	if !setsEqual(due, wantAll) {
		t.Errorf("at t=3600s: got %v, want HIGH ∪ MEDIUM ∪ LOW %v", due, wantAll)
	}
}

func TestResetForcesHealthy(t *testing.T) {
	s := New()
	id := store.NewHostID()
	for i := 0; i < 11; i++ {
		s.RecordFailure(id, "x")
	}
	s.Reset(id)
	st := s.State(id)
	if st.Health != Healthy || st.ConsecutiveFailures != 0 {
		t.Fatalf("expected reset host to be HEALTHY with 0 failures, got %+v", st)
	}
}

func TestStatisticsSuccessRate(t *testing.T) {
	s := New()
	a, b := store.NewHostID(), store.NewHostID()
	s.RecordSuccess(a)
	s.RecordFailure(b, "x")
	s.RecordFailure(b, "x")

	stats := s.Statistics()
	if stats.TotalSystems != 2 {
		t.Errorf("expected 2 systems, got %d", stats.TotalSystems)
	}
	if stats.TotalAttempts != 3 {
		t.Errorf("expected 3 total attempts, got %d", stats.TotalAttempts)
	}
	want := 1.0 / 3.0
	if stats.SuccessRate != want {
		t.Errorf("expected success rate %.4f, got %.4f", want, stats.SuccessRate)
	}
}

func TestStatisticsZeroAttempts(t *testing.T) {
	s := New()
	stats := s.Statistics()
	if stats.SuccessRate != 0 {
		t.Errorf("expected 0 success rate with no attempts, got %v", stats.SuccessRate)
	}
}

func toSet(xs []string) map[string]struct{} {
	out := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		out[x] = struct{}{}
	}
	return out
}

func union(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
