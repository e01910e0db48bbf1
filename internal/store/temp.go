package store

// temp.go holds uploaded inputs in a scratch directory until a run reads
// them. Keys carry a random prefix so repeated uploads of the same file name
// never collide.

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// TempFiles is the intake area for uploaded inputs.
type TempFiles struct {
	dir string
}

// NewTempFiles creates the intake directory if needed.
func NewTempFiles(dir string) (*TempFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &TempFiles{dir: dir}, nil
}

// Dir returns the intake directory.
func (t *TempFiles) Dir() string {
	return t.dir
}

// Put stores one uploaded file and returns its key.
func (t *TempFiles) Put(name string, r io.Reader) (string, error) {
	key := uuid.New().String() + "_" + sanitizeName(name)
	f, err := os.OpenFile(filepath.Join(t.dir, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write upload %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close upload %s: %w", key, err)
	}
	return key, nil
}

// Open resolves a stored upload by key.
func (t *TempFiles) Open(key string) (io.ReadCloser, error) {
	clean := filepath.Base(key)
	f, err := os.Open(filepath.Join(t.dir, clean))
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", clean, err)
	}
	return f, nil
}

// Remove deletes one stored upload. Removing an absent key is not an error.
func (t *TempFiles) Remove(key string) error {
	clean := filepath.Base(key)
	if err := os.Remove(filepath.Join(t.dir, clean)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove upload %s: %w", clean, err)
	}
	return nil
}

// Sweep removes uploads older than maxAge and reports how many went.
func (t *TempFiles) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return 0, fmt.Errorf("list uploads: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		if fi.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(t.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
