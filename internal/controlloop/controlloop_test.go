package controlloop

import (
	"testing"
	"time"
)

func TestNewAppliesDefaultIntervals(t *testing.T) {
	l := New(nil, nil, nil, Config{})
	if l.Cfg.DiscoveryInterval != 300*time.Second {
		t.Errorf("expected default discovery interval 300s, got %v", l.Cfg.DiscoveryInterval)
	}
	if l.Cfg.CollectionInterval != 10*time.Second {
		t.Errorf("expected default collection interval 10s, got %v", l.Cfg.CollectionInterval)
	}
}

func TestNewPreservesExplicitIntervals(t *testing.T) {
	l := New(nil, nil, nil, Config{DiscoveryInterval: 60 * time.Second, CollectionInterval: 5 * time.Second})
	if l.Cfg.DiscoveryInterval != 60*time.Second {
		t.Errorf("expected 60s, got %v", l.Cfg.DiscoveryInterval)
	}
	if l.Cfg.CollectionInterval != 5*time.Second {
		t.Errorf("expected 5s, got %v", l.Cfg.CollectionInterval)
	}
}
