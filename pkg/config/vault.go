package config

import (
	"context"
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/oswaldlabs/streamlog/pkg/logger"
)

// VaultConfig holds Vault-specific configuration
type VaultConfig struct {
	Address    string
	Token      string
	MountPath  string
	SecretPath string
}

// LoadVaultConfig loads Vault configuration from environment
func LoadVaultConfig() VaultConfig {
	return VaultConfig{
		Address:    getEnv("VAULT_ADDR", ""),
		Token:      getEnv("VAULT_TOKEN", ""),
		MountPath:  getEnv("VAULT_MOUNT_PATH", "secret"),
		SecretPath: getEnv("VAULT_SECRET_PATH", "streamlog"),
	}
}

// LoadWithVault loads configuration from the environment and, when VAULT_ADDR
// is set, overrides the database credentials with values stored in Vault.
// Deployments without Vault fall back to plain env configuration.
func LoadWithVault(ctx context.Context, log *logger.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	vaultCfg := LoadVaultConfig()
	if vaultCfg.Address == "" {
		log.Info("vault not configured, using environment database credentials")
		return cfg, nil
	}

	log.WithField("vault_address", vaultCfg.Address).
		WithField("mount_path", vaultCfg.MountPath).
		WithField("secret_path", vaultCfg.SecretPath).
		Info("loading database credentials from vault")

	clientCfg := vaultapi.DefaultConfig()
	clientCfg.Address = vaultCfg.Address

	client, err := vaultapi.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if vaultCfg.Token != "" {
		client.SetToken(vaultCfg.Token)
	}

	secret, err := client.KVv2(vaultCfg.MountPath).Get(ctx, vaultCfg.SecretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read vault secret: %w", err)
	}

	if user, ok := secret.Data["db_user"].(string); ok && user != "" {
		cfg.Database.User = user
	}
	if password, ok := secret.Data["db_password"].(string); ok && password != "" {
		cfg.Database.Password = password
	}

	log.Info("database credentials loaded from vault")
	return cfg, nil
}
