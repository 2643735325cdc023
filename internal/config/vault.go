package config

import (
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"
)

// overlayVaultSecrets reads the KV v2 secret at cfg.Vault.SecretPath and
// overwrites ssh.private_key and broker.password when present, adapted from
// the teacher's go-core/config/vault.go. Vault is strictly optional: any
// field the secret does not carry is left at its YAML-document value.
func overlayVaultSecrets(cfg *Config) error {
	vcfg := vaultapi.DefaultConfig()
	vcfg.Address = cfg.Vault.Address

	client, err := vaultapi.NewClient(vcfg)
	if err != nil {
		return fmt.Errorf("vault client: %w", err)
	}
	if cfg.Vault.Token != "" {
		client.SetToken(cfg.Vault.Token)
	}

	secret, err := client.Logical().Read(cfg.Vault.SecretPath)
	if err != nil {
		return fmt.Errorf("vault read %s: %w", cfg.Vault.SecretPath, err)
	}
	if secret == nil || secret.Data == nil {
		return fmt.Errorf("vault: no data at %s", cfg.Vault.SecretPath)
	}

	// KV v2 nests the actual payload under "data".
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		data = secret.Data
	}

	if v, ok := data["ssh_private_key"].(string); ok && v != "" {
		cfg.SSH.PrivateKey = v
	}
	if v, ok := data["broker_password"].(string); ok && v != "" {
		cfg.Broker.Password = v
	}
	return nil
}
