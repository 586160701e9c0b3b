package app

import (
	"context"
	"errors"
	"fmt"

	"ht-go/internal/database"
	"ht-go/internal/encryption"
	"ht-go/internal/ht"
	"ht-go/internal/vault"
)

// Backups wires a BackupService over the local backend database, the
// configured vault and the backup keys. The database stays open until Close.
func (a *HTApp) Backups(ctx context.Context) (*ht.BackupService, error) {
	if a.cfg.Database.Type != "sqlite" {
		return nil, errors.New("backups need a sqlite database (database.type = \"sqlite\")")
	}

	if a.db == nil {
		db, err := database.NewDatabaseFromConfig(a.cfg.Database, ht.RealClock{}, ht.UUIDGenerator{})
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		a.db = db
	}

	v, err := vault.NewVaultFromConfig(ctx, a.cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	return ht.NewBackupService(a.db, v, enc, a.logger, ht.RealClock{}, a.cfg.ClientID), nil
}
