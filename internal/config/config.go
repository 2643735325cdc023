// Package config loads the collector's single key-value configuration
// document (spec.md §6) with viper, and optionally overlays secrets read
// from HashiCorp Vault.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved configuration for both the collector and
// worker binaries.
type Config struct {
	DB        DBConfig        `mapstructure:"db"`
	SSH       SSHConfig       `mapstructure:"ssh"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Collection CollectionConfig `mapstructure:"collection"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Vault     VaultConfig     `mapstructure:"vault"`
}

// DBConfig points at the relational store.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// SSHConfig carries the remote-shell credential taken as given, per
// spec.md §1 non-goals ("a key path is taken as given").
type SSHConfig struct {
	User       string        `mapstructure:"user"`
	PrivateKey string        `mapstructure:"private_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// BrokerConfig points at the NATS JetStream message bus.
type BrokerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// URL builds a nats:// connection URL from the broker fields.
func (b BrokerConfig) URL() string {
	if b.User == "" {
		return fmt.Sprintf("nats://%s:%d", b.Host, b.Port)
	}
	return fmt.Sprintf("nats://%s:%s@%s:%d", b.User, b.Password, b.Host, b.Port)
}

// CollectionConfig tunes the collection orchestrator (C5).
type CollectionConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	MaxWorkers      int `mapstructure:"max_workers"`
}

// ScanConfig tunes the discovery pipeline (C3).
type ScanConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	MaxWorkers      int `mapstructure:"max_workers"`
}

// TelemetryConfig points OTel exporters at a collector endpoint.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// HTTPConfig configures the ops HTTP surface (/healthz, /statusz).
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// VaultConfig, when Address is non-empty, causes Load to overlay secrets
// from Vault's KV v2 engine on top of the YAML document.
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	SecretPath string `mapstructure:"secret_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ssh.timeout", 10*time.Second)
	v.SetDefault("broker.port", 4222)
	v.SetDefault("collection.interval_seconds", 10)
	v.SetDefault("collection.max_workers", 8)
	v.SetDefault("scan.interval_seconds", 300)
	v.SetDefault("scan.max_workers", 10)
	v.SetDefault("http.addr", ":8090")
}

// Load reads path (a YAML document) into a Config, applying defaults for
// anything unset, environment overrides under the OPTILAB_ prefix, and — if
// vault.address is configured — a Vault secret overlay for SSH and broker
// credentials.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("OPTILAB")
	// Map dotted keys to env names, e.g. db.dsn -> OPTILAB_DB_DSN.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.Vault.Address != "" {
		if err := overlayVaultSecrets(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: vault overlay: %w", err)
		}
	}

	if cfg.DB.DSN == "" {
		return Config{}, fmt.Errorf("config: db.dsn is required")
	}
	return cfg, nil
}
