// Package store persists processed output artifacts and holds uploaded
// inputs until a run consumes them. Two backends implement the same Store
// contract: local disk for single-node deployments and S3 for anything that
// needs to survive a restart or share state across nodes.
package store

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Artifact is one persisted output file.
type Artifact struct {
	Key     string // unique storage key
	Name    string // logical file name the key was derived from
	Locator string // public path a client can download the artifact from
}

// Info describes a stored object.
type Info struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	ModTime     time.Time `json:"modTime"`
}

// Store persists output files and serves them back by key.
type Store interface {
	// Save writes r under a fresh key derived from name. The reader is
	// consumed to EOF.
	Save(ctx context.Context, name string, r io.Reader) (Artifact, error)
	// Open returns the stored bytes and metadata for key.
	Open(ctx context.Context, key string) (io.ReadCloser, Info, error)
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// List enumerates every stored object.
	List(ctx context.Context) ([]Info, error)
}

// sanitizeName reduces a client-supplied file name to a safe flat name.
func sanitizeName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.ReplaceAll(base, "\\", "_")
	if base == "" || base == "." || base == ".." || base == "/" {
		return "file"
	}
	return base
}

// displayName strips the uniqueness prefix from a storage key, leaving the
// name the artifact was saved under.
func displayName(key string) string {
	if i := strings.IndexByte(key, '_'); i > 0 {
		if _, err := strconv.ParseInt(key[:i], 10, 64); err == nil && i+1 < len(key) {
			return key[i+1:]
		}
	}
	return key
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip":
		return "application/zip"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
