package ingest

import (
	"testing"
	"time"

	"github.com/noiseless47/optilab-collector/internal/probe"
	"github.com/noiseless47/optilab-collector/internal/store"
)

func TestParseHostIDRoundTrip(t *testing.T) {
	id := store.NewHostID()
	got, err := parseHostID(id.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != id {
		t.Errorf("got %s, want %s", got, id)
	}
}

func TestParseHostIDRejectsGarbage(t *testing.T) {
	_, err := parseHostID("not-a-uuid")
	if err == nil {
		t.Fatalf("expected error for invalid host id")
	}
}

func TestToSampleConvertsUptimeToInt64(t *testing.T) {
	uptime := 12345.6
	m := probe.Metrics{UptimeSeconds: &uptime}
	id := store.NewHostID()
	ts := time.Now()

	sample := toSample(id, ts, m)
	if sample.UptimeSeconds == nil || *sample.UptimeSeconds != 12345 {
		t.Errorf("expected uptime 12345, got %v", sample.UptimeSeconds)
	}
	if sample.CollectionMethod != "ssh" {
		t.Errorf("expected collection_method 'ssh', got %q", sample.CollectionMethod)
	}
	if sample.HostID != id {
		t.Errorf("host id mismatch")
	}
}

func TestToSampleToleratesNilUptime(t *testing.T) {
	sample := toSample(store.NewHostID(), time.Now(), probe.Metrics{})
	if sample.UptimeSeconds != nil {
		t.Errorf("expected nil uptime, got %v", *sample.UptimeSeconds)
	}
}

func TestStatsZeroElapsedNoDivideByZero(t *testing.T) {
	w := &Worker{startedAt: time.Now()}
	stats := w.Stats()
	if stats.Processed != 0 || stats.Errors != 0 {
		t.Errorf("expected zeroed stats on a fresh worker, got %+v", stats)
	}
	if stats.MessagesPerSec != 0 {
		t.Errorf("expected 0 messages/sec on a fresh worker, got %v", stats.MessagesPerSec)
	}
}

func TestHandleAlertAlwaysAcks(t *testing.T) {
	w := NewWorker(nil, zapNop())
	ok := w.HandleAlert([]byte(`{"payload":{"severity":"warning"}}`))
	if !ok {
		t.Fatalf("expected HandleAlert to always return true")
	}
	if w.Stats().Processed != 1 {
		t.Errorf("expected processed count 1, got %d", w.Stats().Processed)
	}
}

func TestHandleAlertToleratesMalformedPayload(t *testing.T) {
	w := NewWorker(nil, zapNop())
	ok := w.HandleAlert([]byte(`not even json`))
	if !ok {
		t.Fatalf("expected HandleAlert to ack even on undecodable payload")
	}
}
