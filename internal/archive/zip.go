// Package archive builds zip bundles from stored artifacts without holding
// more than one source open at a time.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
)

// Entry is one file to place in a bundle. Open is called exactly once, when
// the entry's turn comes, so sources stay closed until needed.
type Entry struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// WriteZip streams entries into w as a zip archive. Duplicate entry names
// get a numeric suffix so extraction never silently overwrites one file
// with another.
func WriteZip(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	seen := make(map[string]bool, len(entries))

	for _, entry := range entries {
		name := uniqueEntryName(seen, entry.Name)
		fw, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("create zip entry %s: %w", name, err)
		}

		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("open zip source %s: %w", entry.Name, err)
		}
		_, err = io.Copy(fw, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("write zip entry %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return nil
}

func uniqueEntryName(seen map[string]bool, name string) string {
	if name == "" {
		name = "file"
	}
	if !seen[name] {
		seen[name] = true
		return name
	}

	ext := path.Ext(name)
	stem := name[:len(name)-len(ext)]
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !seen[candidate] {
			seen[candidate] = true
			return candidate
		}
	}
}
