package probe

import "testing"

func TestParseIdentificationToleratesMissingFields(t *testing.T) {
	raw := []byte(`{"hostname":"ws05","cpu_cores":8,"ram_total_gb":16}`)
	id, err := ParseIdentification(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Hostname == nil || *id.Hostname != "ws05" {
		t.Errorf("expected hostname ws05, got %v", id.Hostname)
	}
	if id.CPUCores == nil || *id.CPUCores != 8 {
		t.Errorf("expected cpu_cores 8, got %v", id.CPUCores)
	}
	if id.MACAddress != nil {
		t.Errorf("expected nil mac_address, got %v", *id.MACAddress)
	}
	if id.GPUModel != nil {
		t.Errorf("expected nil gpu_model, got %v", *id.GPUModel)
	}
}

func TestParseIdentificationRejectsMalformedJSON(t *testing.T) {
	_, err := ParseIdentification([]byte(`not json`))
	if err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}

func TestParseMetricsToleratesMissingFields(t *testing.T) {
	raw := []byte(`{"cpu_percent":42.5,"logged_in_users":3}`)
	m, err := ParseMetrics(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.CPUPercent == nil || *m.CPUPercent != 42.5 {
		t.Errorf("expected cpu_percent 42.5, got %v", m.CPUPercent)
	}
	if m.LoggedInUsers == nil || *m.LoggedInUsers != 3 {
		t.Errorf("expected logged_in_users 3, got %v", m.LoggedInUsers)
	}
	if m.DiskPercent != nil {
		t.Errorf("expected nil disk_percent, got %v", *m.DiskPercent)
	}
}

func TestTruncateShortStringUnchanged(t *testing.T) {
	if got := truncate([]byte("short"), 80); got != "short" {
		t.Errorf("expected unchanged string, got %q", got)
	}
}

func TestTruncateLongStringAddsEllipsis(t *testing.T) {
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'x'
	}
	got := truncate(long, 10)
	if len(got) != 13 || got[10:] != "..." {
		t.Errorf("expected truncated string with ellipsis, got %q", got)
	}
}
