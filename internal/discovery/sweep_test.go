package discovery

import (
	"context"
	"testing"
)

func TestEnumerateSlash30DropsNetworkAndBroadcast(t *testing.T) {
	addrs, err := Enumerate("10.30.0.0/30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// /30 has 4 addresses total; network + broadcast are dropped, leaving 2.
	if len(addrs) != 2 {
		t.Fatalf("expected 2 usable addresses, got %d: %v", len(addrs), addrs)
	}
	if addrs[0] != "10.30.0.1" || addrs[1] != "10.30.0.2" {
		t.Errorf("unexpected addresses: %v", addrs)
	}
}

func TestEnumerateSlash24Count(t *testing.T) {
	addrs, err := Enumerate("10.30.0.0/24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(addrs) != 254 {
		t.Fatalf("expected 254 usable addresses, got %d", len(addrs))
	}
}

func TestEnumerateRejectsInvalidCIDR(t *testing.T) {
	_, err := Enumerate("not-a-cidr")
	if err == nil {
		t.Fatalf("expected error for invalid CIDR")
	}
}

func TestSweepEmptyAddrListReturnsEmpty(t *testing.T) {
	got := Sweep(context.Background(), nil, 22, 10)
	if len(got) != 0 {
		t.Fatalf("expected no responsive addresses, got %v", got)
	}
}

func TestSweepUnreachableAddressExcluded(t *testing.T) {
	// TEST-NET-1 (RFC 5737) is reserved for documentation and never routes;
	// dialing it should fail fast via refusal or timeout.
	got := Sweep(context.Background(), []string{"192.0.2.1"}, 1, 1)
	if len(got) != 0 {
		t.Fatalf("expected unreachable test-net address excluded, got %v", got)
	}
}
