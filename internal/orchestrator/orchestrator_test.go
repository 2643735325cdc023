package orchestrator

import (
	"testing"

	"github.com/noiseless47/optilab-collector/internal/store"
)

func TestDedupeRemovesDuplicatesPreservingOrder(t *testing.T) {
	a, b := store.NewHostID(), store.NewHostID()
	in := []store.HostID{a, b, a, a, b}
	out := dedupe(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 unique ids, got %d: %v", len(out), out)
	}
	if out[0] != a || out[1] != b {
		t.Errorf("expected order [a, b], got %v", out)
	}
}

func TestDedupeEmptyInput(t *testing.T) {
	out := dedupe(nil)
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %v", out)
	}
}
