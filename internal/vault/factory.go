package vault

import (
	"context"
	"fmt"

	"ht-go/internal/config"
	"ht-go/internal/ht"
)

// NewVaultFromConfig creates a Vault implementation based on the vault config type.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig) (ht.Vault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(nil), nil
	case "s3":
		return NewS3Vault(ctx, cfg)
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_root to be set")
		}
		return NewFileSystemVault(cfg.FSRoot)
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
