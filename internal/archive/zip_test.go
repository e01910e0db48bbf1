package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func stringEntry(name, content string) Entry {
	return Entry{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func readBundle(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("not a readable zip: %v", err)
	}
	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		content, _ := io.ReadAll(rc)
		rc.Close()
		out[f.Name] = string(content)
	}
	return out
}

func TestWriteZip(t *testing.T) {
	var buf bytes.Buffer
	err := WriteZip(&buf, []Entry{
		stringEntry("a_replaced.csv", "a,b\n1,2\n"),
		stringEntry("b_replaced.csv", "c\n3\n"),
	})
	if err != nil {
		t.Fatalf("WriteZip failed: %v", err)
	}

	got := readBundle(t, buf.Bytes())
	want := map[string]string{
		"a_replaced.csv": "a,b\n1,2\n",
		"b_replaced.csv": "c\n3\n",
	}
	if len(got) != len(want) {
		t.Fatalf("entries = %v", got)
	}
	for name, content := range want {
		if got[name] != content {
			t.Errorf("entry %s = %q, want %q", name, got[name], content)
		}
	}
}

func TestWriteZip_DuplicateNames(t *testing.T) {
	var buf bytes.Buffer
	err := WriteZip(&buf, []Entry{
		stringEntry("data_replaced.csv", "one"),
		stringEntry("data_replaced.csv", "two"),
		stringEntry("data_replaced.csv", "three"),
	})
	if err != nil {
		t.Fatalf("WriteZip failed: %v", err)
	}

	got := readBundle(t, buf.Bytes())
	want := map[string]string{
		"data_replaced.csv":   "one",
		"data_replaced_2.csv": "two",
		"data_replaced_3.csv": "three",
	}
	for name, content := range want {
		if got[name] != content {
			t.Errorf("entry %s = %q, want %q", name, got[name], content)
		}
	}
}

func TestWriteZip_SourceErrorPropagates(t *testing.T) {
	boom := errors.New("source vanished")
	opened := 0

	err := WriteZip(io.Discard, []Entry{
		stringEntry("ok.csv", "fine"),
		{
			Name: "gone.csv",
			Open: func() (io.ReadCloser, error) { return nil, boom },
		},
		{
			Name: "never.csv",
			Open: func() (io.ReadCloser, error) {
				opened++
				return io.NopCloser(strings.NewReader("")), nil
			},
		},
	})

	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped source error", err)
	}
	if !strings.Contains(err.Error(), "gone.csv") {
		t.Errorf("err = %v, want the entry named", err)
	}

	// Entries after the failure are never opened
	if opened != 0 {
		t.Errorf("later entry opened %d times, want 0", opened)
	}
}
