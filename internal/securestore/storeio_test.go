package securestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"walletguard/go-backend/internal/testutil/fsperm"
)

func TestWriteReadBlobFile(t *testing.T) {
	blob, err := EncryptPrivateKeyWithCost(testKey(), "CorrectPass1!", testCost)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys", "wallet.key")
	if err := WriteBlobFile(path, blob); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	fsperm.AssertPrivateDirPerm(t, filepath.Dir(path))
	fsperm.AssertPrivateFilePerm(t, path)

	got, err := ReadBlobFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got != blob {
		t.Fatal("blob changed on disk round-trip")
	}
	private, err := FileIsPrivate(path)
	if err != nil || !private {
		t.Fatalf("expected private file, got private=%v err=%v", private, err)
	}
}

func TestReadBlobFileRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.key")
	if err := os.WriteFile(path, []byte("  \n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := ReadBlobFile(path); !errors.Is(err, ErrEmptyBlobFile) {
		t.Fatalf("expected ErrEmptyBlobFile, got %v", err)
	}
}

func TestWriteBlobFileCleansUpOnFailedRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wallet.key")
	// A non-empty directory at the target makes the rename fail.
	if err := os.MkdirAll(filepath.Join(path, "occupied"), 0o700); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	if err := WriteBlobFile(path, "blob"); err == nil {
		t.Fatal("expected rename onto a directory to fail")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "wallet.key" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("temp file left behind: %v", names)
	}
}

func TestWriteBlobFileReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.key")
	if err := WriteBlobFile(path, "old"); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := WriteBlobFile(path, "new"); err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	got, err := ReadBlobFile(path)
	if err != nil || got != "new" {
		t.Fatalf("expected replaced blob, got %q %v", got, err)
	}
	fsperm.AssertPrivateFilePerm(t, path)
}
