package engine

import (
	"path/filepath"
	"strings"
	"time"
)

// replacedName derives the output artifact name for one input file:
// "<stem>_replaced.csv". Any directory part of the display name is dropped.
func replacedName(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "_replaced.csv"
}

// bundleName names a zip bundle with a fresh timestamp.
func bundleName(now time.Time) string {
	return "replaced_files_" + now.Format("20060102_150405") + ".zip"
}
