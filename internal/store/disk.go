package store

// disk.go stores artifacts as flat files in one directory. Keys carry a
// millisecond timestamp prefix so names never collide across runs; when two
// saves land in the same millisecond the prefix is bumped until the
// exclusive create succeeds.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// DiskStore keeps artifacts in a single local directory.
type DiskStore struct {
	dir          string
	downloadPath string
}

// NewDiskStore creates the backing directory if needed. downloadPath is the
// URL path prefix clients fetch artifacts from.
func NewDiskStore(dir, downloadPath string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &DiskStore{dir: dir, downloadPath: downloadPath}, nil
}

// Dir returns the backing directory.
func (d *DiskStore) Dir() string {
	return d.dir
}

func (d *DiskStore) locatorFor(key string) string {
	return d.downloadPath + "/" + key
}

func (d *DiskStore) Save(ctx context.Context, name string, r io.Reader) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	base := sanitizeName(name)
	millis := time.Now().UnixMilli()
	for attempt := int64(0); ; attempt++ {
		key := fmt.Sprintf("%d_%s", millis+attempt, base)
		f, err := os.OpenFile(filepath.Join(d.dir, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return Artifact{}, fmt.Errorf("create artifact %s: %w", key, err)
		}

		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			os.Remove(f.Name())
			return Artifact{}, fmt.Errorf("write artifact %s: %w", key, err)
		}
		if err := f.Close(); err != nil {
			return Artifact{}, fmt.Errorf("close artifact %s: %w", key, err)
		}
		return Artifact{Key: key, Name: base, Locator: d.locatorFor(key)}, nil
	}
}

func (d *DiskStore) Open(ctx context.Context, key string) (io.ReadCloser, Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, Info{}, err
	}

	clean := filepath.Base(key)
	f, err := os.Open(filepath.Join(d.dir, clean))
	if err != nil {
		return nil, Info{}, fmt.Errorf("open artifact %s: %w", clean, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Info{}, fmt.Errorf("stat artifact %s: %w", clean, err)
	}
	return f, Info{
		Key:         clean,
		Name:        displayName(clean),
		Size:        fi.Size(),
		ContentType: contentTypeFor(clean),
		ModTime:     fi.ModTime(),
	}, nil
}

func (d *DiskStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	clean := filepath.Base(key)
	if err := os.Remove(filepath.Join(d.dir, clean)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove artifact %s: %w", clean, err)
	}
	return nil
}

func (d *DiskStore) List(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Key:         entry.Name(),
			Name:        displayName(entry.Name()),
			Size:        fi.Size(),
			ContentType: contentTypeFor(entry.Name()),
			ModTime:     fi.ModTime(),
		})
	}
	return infos, nil
}
