package ht

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	backupTimeLayout = "20060102T150405Z"
	backupSuffix     = ".db.age"
)

// Snapshotter writes a consistent copy of a database to a file.
type Snapshotter interface {
	BackupTo(destPath string) error
}

// Backup describes one encrypted database snapshot in the vault.
type Backup struct {
	Name      string    `json:"name" yaml:"name"`
	Size      int64     `json:"size" yaml:"size"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
}

// BackupService snapshots the local backend database, encrypts the snapshot
// and keeps it in a vault under "<clientID>/<timestamp>.db.age".
type BackupService struct {
	db       Snapshotter
	vault    Vault
	enc      Encryptor
	logger   Logger
	clock    Clock
	clientID string
}

// NewBackupService creates a BackupService.
func NewBackupService(db Snapshotter, vault Vault, enc Encryptor, logger Logger, clock Clock, clientID string) *BackupService {
	return &BackupService{
		db:       db,
		vault:    vault,
		enc:      enc,
		logger:   logger,
		clock:    clock,
		clientID: clientID,
	}
}

// Init checks the vault and generates the backup key pair.
func (s *BackupService) Init(ctx context.Context, passphrase string) error {
	if err := s.vault.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("checking vault: %w", err)
	}
	if err := s.enc.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up backup keys: %w", err)
	}
	s.logger.Info("backup keys created")
	return nil
}

// Create snapshots the database and uploads it encrypted.
func (s *BackupService) Create(ctx context.Context) (*Backup, error) {
	if !s.enc.IsConfigured() {
		return nil, ErrBackupKeysMissing
	}

	dir, err := os.MkdirTemp("", "ht-backup-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	plainPath := filepath.Join(dir, "ht.db")
	if err := s.db.BackupTo(plainPath); err != nil {
		return nil, fmt.Errorf("snapshotting database: %w", err)
	}

	sealed, err := s.seal(plainPath, filepath.Join(dir, "ht.db.age"))
	if err != nil {
		return nil, err
	}
	defer sealed.Close()

	info, err := sealed.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat encrypted snapshot: %w", err)
	}

	created := s.clock.Now().UTC().Truncate(time.Second)
	name := s.clientID + "/" + created.Format(backupTimeLayout) + backupSuffix
	if err := s.vault.Put(ctx, name, sealed, info.Size()); err != nil {
		return nil, fmt.Errorf("uploading backup: %w", err)
	}

	s.logger.Info("backup created", "name", name, "size", info.Size())
	return &Backup{Name: name, Size: info.Size(), CreatedAt: created}, nil
}

// seal encrypts plainPath into sealedPath and returns sealedPath opened for reading.
func (s *BackupService) seal(plainPath, sealedPath string) (*os.File, error) {
	plain, err := os.Open(plainPath)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer plain.Close()

	out, err := os.OpenFile(sealedPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating encrypted snapshot: %w", err)
	}
	if err := s.enc.Encrypt(plain, out); err != nil {
		out.Close()
		return nil, fmt.Errorf("encrypting snapshot: %w", err)
	}
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		out.Close()
		return nil, fmt.Errorf("rewinding encrypted snapshot: %w", err)
	}
	return out, nil
}

// List returns this client's backups, newest first.
func (s *BackupService) List(ctx context.Context) ([]Backup, error) {
	objs, err := s.vault.List(ctx, s.clientID+"/")
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}

	backups := make([]Backup, 0, len(objs))
	for _, obj := range objs {
		base := strings.TrimPrefix(obj.Name, s.clientID+"/")
		stamp, ok := strings.CutSuffix(base, backupSuffix)
		if !ok || strings.Contains(base, "/") {
			continue
		}
		created, err := time.Parse(backupTimeLayout, stamp)
		if err != nil {
			created = obj.ModTime.UTC()
		}
		backups = append(backups, Backup{Name: obj.Name, Size: obj.Size, CreatedAt: created})
	}

	slices.SortFunc(backups, func(a, b Backup) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.Name, a.Name)
	})
	return backups, nil
}

// Restore decrypts a backup into destPath, which must not exist yet. An
// empty name restores the newest backup.
func (s *BackupService) Restore(ctx context.Context, name, passphrase, destPath string) (*Backup, error) {
	if _, err := os.Stat(destPath); err == nil {
		return nil, fmt.Errorf("%w: %s already exists", ErrInvalidInput, destPath)
	}

	backup, err := s.find(ctx, name)
	if err != nil {
		return nil, err
	}

	dc, err := s.enc.Unlock(passphrase)
	if err != nil {
		return nil, fmt.Errorf("unlocking backup key: %w", err)
	}

	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	sealed, err := os.CreateTemp(dir, ".ht-restore-*.age")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		sealed.Close()
		os.Remove(sealed.Name())
	}()
	if err := s.vault.Get(ctx, backup.Name, sealed); err != nil {
		return nil, fmt.Errorf("downloading backup: %w", err)
	}
	if _, err := sealed.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding download: %w", err)
	}

	plain, err := os.CreateTemp(dir, ".ht-restore-*.db")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	plainPath := plain.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(plainPath)
		}
	}()

	if err := dc.Decrypt(sealed, plain); err != nil {
		plain.Close()
		return nil, fmt.Errorf("decrypting backup: %w", err)
	}
	if err := plain.Close(); err != nil {
		return nil, fmt.Errorf("closing restored file: %w", err)
	}
	if err := os.Rename(plainPath, destPath); err != nil {
		return nil, fmt.Errorf("moving restored file into place: %w", err)
	}
	success = true

	s.logger.Info("backup restored", "name", backup.Name, "dest", destPath)
	return backup, nil
}

func (s *BackupService) find(ctx context.Context, name string) (*Backup, error) {
	backups, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(backups) == 0 {
		return nil, fmt.Errorf("no backups for client %s: %w", s.clientID, ErrNotFound)
	}
	if name == "" {
		return &backups[0], nil
	}
	for i := range backups {
		if backups[i].Name == name || backups[i].Name == s.clientID+"/"+name {
			return &backups[i], nil
		}
	}
	return nil, fmt.Errorf("backup %s: %w", name, ErrNotFound)
}
