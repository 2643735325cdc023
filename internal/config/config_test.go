package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
db:
  dsn: "postgres://localhost/optilab"
ssh:
  user: labadmin
  private_key: /etc/optilab/id_ed25519
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.SSH.Timeout != 10*time.Second {
		t.Errorf("expected default ssh timeout 10s, got %v", cfg.SSH.Timeout)
	}
	if cfg.Collection.IntervalSeconds != 10 {
		t.Errorf("expected default collection interval 10, got %d", cfg.Collection.IntervalSeconds)
	}
	if cfg.Scan.IntervalSeconds != 300 {
		t.Errorf("expected default scan interval 300, got %d", cfg.Scan.IntervalSeconds)
	}
	if cfg.HTTP.Addr != ":8090" {
		t.Errorf("expected default http addr :8090, got %q", cfg.HTTP.Addr)
	}
}

func TestLoadRequiresDSN(t *testing.T) {
	path := writeTempConfig(t, `
ssh:
  user: labadmin
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing db.dsn")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
