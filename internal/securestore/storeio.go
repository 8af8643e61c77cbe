package securestore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var ErrEmptyBlobFile = errors.New("securestore: encrypted key file is empty")

// ReadBlobFile reads a base64 key blob written by WriteBlobFile.
func ReadBlobFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	blob := strings.TrimSpace(string(raw))
	if blob == "" {
		return "", ErrEmptyBlobFile
	}
	return blob, nil
}

// WriteBlobFile persists a key blob with owner-only permissions. The blob is
// synced to a temp file in the same directory and renamed into place.
func WriteBlobFile(path, blob string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	// CreateTemp opens the file 0600.
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.WriteString(blob + "\n"); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// FileIsPrivate reports whether path is unreadable by group and others.
func FileIsPrivate(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.Mode().Perm()&0o077 == 0, nil
}
