package engine

import (
	"testing"
	"time"
)

func TestReplacedName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"data.csv", "data_replaced.csv"},
		{"report.CSV", "report_replaced.csv"},
		{"no_extension", "no_extension_replaced.csv"},
		{"weird.name.csv", "weird.name_replaced.csv"},
		{"dir/nested/data.csv", "data_replaced.csv"},
		{".csv", "_replaced.csv"},
	}

	for _, tt := range tests {
		if got := replacedName(tt.in); got != tt.want {
			t.Errorf("replacedName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBundleName(t *testing.T) {
	now := time.Date(2024, 1, 15, 14, 30, 52, 0, time.UTC)
	if got := bundleName(now); got != "replaced_files_20240115_143052.zip" {
		t.Errorf("bundleName = %q", got)
	}
}
