package sshpool

import "testing"

func TestKeyFormat(t *testing.T) {
	k := key("10.0.0.5", 22, "optilab")
	if k != "10.0.0.5:22@optilab" {
		t.Fatalf("unexpected key format: %s", k)
	}
}

func TestAuthMethodsForRequiresCredential(t *testing.T) {
	_, err := authMethodsFor(Credential{User: "optilab"})
	if err == nil {
		t.Fatalf("expected error when neither private key nor password is set")
	}
}

func TestAuthMethodsForPassword(t *testing.T) {
	methods, err := authMethodsFor(Credential{User: "optilab", Password: "hunter2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(methods) != 1 {
		t.Fatalf("expected exactly one auth method, got %d", len(methods))
	}
}

func TestAuthMethodsForBadPrivateKey(t *testing.T) {
	_, err := authMethodsFor(Credential{User: "optilab", PrivateKeyPEM: []byte("not a key")})
	if err == nil {
		t.Fatalf("expected error parsing a malformed private key")
	}
}

func TestParseMarkersExtractsEachTag(t *testing.T) {
	commands := []Command{{Tag: "cpu", Cmd: "x"}, {Tag: "mem", Cmd: "y"}}
	output := "===START_cpu===\n12.5\n===END_cpu===\n===START_mem===\n48.1\n===END_mem===\n"

	got := parseMarkers(output, commands)
	if got["cpu"] != "12.5" {
		t.Errorf("cpu: got %q, want %q", got["cpu"], "12.5")
	}
	if got["mem"] != "48.1" {
		t.Errorf("mem: got %q, want %q", got["mem"], "48.1")
	}
}

func TestParseMarkersMissingMarkerYieldsEmpty(t *testing.T) {
	commands := []Command{{Tag: "cpu", Cmd: "x"}}
	got := parseMarkers("garbled output with no markers", commands)
	if got["cpu"] != "" {
		t.Errorf("expected empty string for missing marker, got %q", got["cpu"])
	}
}

func TestZeroResultsCoversEveryTag(t *testing.T) {
	commands := []Command{{Tag: "a", Cmd: "x"}, {Tag: "b", Cmd: "y"}}
	got := zeroResults(commands)
	if len(got) != 2 || got["a"] != "" || got["b"] != "" {
		t.Fatalf("unexpected zero results: %+v", got)
	}
}

func TestPoolStatsEmptyPool(t *testing.T) {
	p := New(WithMaxConnections(50))
	stats := p.Stats()
	if stats.ActiveConnections != 0 {
		t.Errorf("expected 0 active connections, got %d", stats.ActiveConnections)
	}
	if stats.MaxConnections != 50 {
		t.Errorf("expected max 50, got %d", stats.MaxConnections)
	}
	if stats.UtilizationPct != 0 {
		t.Errorf("expected 0%% utilization, got %v", stats.UtilizationPct)
	}
}

func TestPoolCloseAllOnEmptyPoolIsNoop(t *testing.T) {
	p := New()
	p.CloseAll()
	if len(p.sessions) != 0 {
		t.Fatalf("expected empty session map, got %d entries", len(p.sessions))
	}
}

func TestPoolCleanupIdleOnEmptyPoolEvictsNothing(t *testing.T) {
	p := New()
	if n := p.CleanupIdle(); n != 0 {
		t.Fatalf("expected 0 evictions on empty pool, got %d", n)
	}
}

func TestAcquireRejectsWhenAtCapacity(t *testing.T) {
	p := New(WithMaxConnections(0))
	_, err := p.Acquire("10.0.0.1", 22, Credential{User: "optilab", Password: "x"})
	if err == nil {
		t.Fatalf("expected capacity error with max connections 0")
	}
}
