package ht_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ht-go/internal/encryption"
	"ht-go/internal/ht"
	"ht-go/internal/testutil"
	"ht-go/internal/vault"
)

// fileSnapshotter "backs up" a database by writing fixed content.
type fileSnapshotter struct {
	content string
	err     error
}

func (f *fileSnapshotter) BackupTo(destPath string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(destPath, []byte(f.content), 0o600)
}

func newBackupService(t *testing.T, db ht.Snapshotter) (*ht.BackupService, *vault.MemoryVault, *testutil.StubClock) {
	t.Helper()
	clock := testutil.FixedClock()
	v := vault.NewMemoryVault(clock)
	enc := encryption.NewTestEncryptor()
	svc := ht.NewBackupService(db, v, enc, ht.NewNopLogger(), clock, "client-1")
	if err := svc.Init(context.Background(), "pw"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return svc, v, clock
}

func TestBackupService_CreateListRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := &fileSnapshotter{content: "first"}
	svc, v, clock := newBackupService(t, db)

	first, err := svc.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if first.Name != "client-1/20260115T103000Z.db.age" {
		t.Errorf("Name = %q", first.Name)
	}

	objs, err := v.List(ctx, "")
	if err != nil {
		t.Fatalf("vault List() error = %v", err)
	}
	if len(objs) != 1 || objs[0].Size != first.Size {
		t.Fatalf("vault holds %+v, want one object of %d bytes", objs, first.Size)
	}

	clock.Advance(time.Hour)
	db.content = "second"
	second, err := svc.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	backups, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(backups) != 2 || backups[0].Name != second.Name || backups[1].Name != first.Name {
		t.Fatalf("List() = %+v, want newest first", backups)
	}
	if !backups[1].CreatedAt.Equal(time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v, want parsed from the name", backups[1].CreatedAt)
	}

	dir := t.TempDir()

	latest := filepath.Join(dir, "latest.db")
	got, err := svc.Restore(ctx, "", "pw", latest)
	if err != nil {
		t.Fatalf("Restore(latest) error = %v", err)
	}
	if got.Name != second.Name {
		t.Errorf("Restore(latest) restored %s, want %s", got.Name, second.Name)
	}
	assertFile(t, latest, "second")

	older := filepath.Join(dir, "older.db")
	if _, err := svc.Restore(ctx, "20260115T103000Z.db.age", "pw", older); err != nil {
		t.Fatalf("Restore(short name) error = %v", err)
	}
	assertFile(t, older, "first")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("restore dir has %d entries, want 2 (temp files left behind?)", len(entries))
	}
}

func assertFile(t *testing.T, path, want string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if string(data) != want {
		t.Errorf("%s = %q, want %q", path, data, want)
	}
}

func TestBackupService_RestoreErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, v, _ := newBackupService(t, &fileSnapshotter{content: "db"})
	dir := t.TempDir()

	if _, err := svc.Restore(ctx, "", "pw", filepath.Join(dir, "a.db")); !errors.Is(err, ht.ErrNotFound) {
		t.Errorf("Restore() with no backups error = %v, want ErrNotFound", err)
	}

	if _, err := svc.Create(ctx); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := svc.Restore(ctx, "nope.db.age", "pw", filepath.Join(dir, "b.db")); !errors.Is(err, ht.ErrNotFound) {
		t.Errorf("Restore() unknown name error = %v, want ErrNotFound", err)
	}

	if _, err := svc.Restore(ctx, "", "wrong", filepath.Join(dir, "c.db")); !errors.Is(err, encryption.ErrWrongPassphrase) {
		t.Errorf("Restore() wrong passphrase error = %v, want ErrWrongPassphrase", err)
	}

	existing := filepath.Join(dir, "exists.db")
	if err := os.WriteFile(existing, []byte("keep me"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Restore(ctx, "", "pw", existing); !errors.Is(err, ht.ErrInvalidInput) {
		t.Errorf("Restore() over existing file error = %v, want ErrInvalidInput", err)
	}
	assertFile(t, existing, "keep me")

	// Objects from other clients or with foreign names are not backups.
	for _, name := range []string{"client-2/20260101T000000Z.db.age", "client-1/notes.txt"} {
		if err := v.Put(ctx, name, strings.NewReader("x"), 1); err != nil {
			t.Fatal(err)
		}
	}
	backups, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(backups) != 1 {
		t.Errorf("List() returned %d backups, want 1", len(backups))
	}
}

func TestBackupService_CreateErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("keys missing", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		enc := encryption.NewAgeEncryptor(filepath.Join(dir, "ht.pub"), filepath.Join(dir, "ht.key"))
		svc := ht.NewBackupService(&fileSnapshotter{}, vault.NewMemoryVault(nil), enc, ht.NewNopLogger(), testutil.FixedClock(), "c")
		if _, err := svc.Create(ctx); !errors.Is(err, ht.ErrBackupKeysMissing) {
			t.Errorf("Create() error = %v, want ErrBackupKeysMissing", err)
		}
	})

	t.Run("snapshot fails", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("disk full")
		svc, v, _ := newBackupService(t, &fileSnapshotter{err: boom})
		if _, err := svc.Create(ctx); !errors.Is(err, boom) {
			t.Errorf("Create() error = %v, want %v", err, boom)
		}
		if objs, _ := v.List(ctx, ""); len(objs) != 0 {
			t.Errorf("vault holds %d objects after a failed backup", len(objs))
		}
	})
}
