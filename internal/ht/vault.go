package ht

import (
	"context"
	"io"
	"time"
)

// Vault stores encrypted database backups as named objects. Names are
// slash-separated relative paths such as "client-id/20260115T093000Z.db.age".
type Vault interface {
	// Put stores size bytes read from r under name, replacing any existing object.
	Put(ctx context.Context, name string, r io.Reader, size int64) error

	// Get writes the object stored under name to w. It returns an error
	// wrapping ErrNotFound when there is no such object.
	Get(ctx context.Context, name string, w io.Writer) error

	// List returns every object whose name starts with prefix.
	List(ctx context.Context, prefix string) ([]VaultObject, error)

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup(ctx context.Context) error
}

// VaultObject describes one stored object.
type VaultObject struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Encryptor encrypts backups with a public key and unlocks the matching
// private key with a passphrase for restores.
type Encryptor interface {
	// Setup generates the key pair, protecting the private key with passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key. It fails if the passphrase is wrong.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
