package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sidmazak/bulk-csv-editor/internal/engine"
	"github.com/sidmazak/bulk-csv-editor/internal/store"
)

func newUploads(t *testing.T) *store.TempFiles {
	t.Helper()
	tf, err := store.NewTempFiles(t.TempDir())
	if err != nil {
		t.Fatalf("NewTempFiles failed: %v", err)
	}
	return tf
}

func TestClient_FetchStoredUpload(t *testing.T) {
	uploads := newUploads(t)
	key, err := uploads.Put("data.csv", strings.NewReader("a,b\n1,2\n"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	c := New(uploads, 0)
	rc, err := c.Fetch(context.Background(), engine.FileDescriptor{Path: key, Name: "data.csv"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "a,b\n1,2\n" {
		t.Errorf("content = %q", data)
	}
}

func TestClient_FetchRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		io.WriteString(w, "city\nAlbany\n")
	}))
	defer srv.Close()

	c := New(newUploads(t), 0)
	rc, err := c.Fetch(context.Background(), engine.FileDescriptor{
		Path:     "/remote/data.csv",
		Name:     "data.csv",
		Location: srv.URL + "/data.csv",
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "city\nAlbany\n" {
		t.Errorf("content = %q", data)
	}
}

func TestClient_LocationWinsOverPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "remote")
	}))
	defer srv.Close()

	uploads := newUploads(t)
	key, err := uploads.Put("data.csv", strings.NewReader("local"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	c := New(uploads, 0)
	rc, err := c.Fetch(context.Background(), engine.FileDescriptor{
		Path:     key,
		Name:     "data.csv",
		Location: srv.URL,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "remote" {
		t.Errorf("content = %q, want the location's bytes", data)
	}
}

func TestClient_RemoteStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(newUploads(t), 0)
	_, err := c.Fetch(context.Background(), engine.FileDescriptor{Location: srv.URL})
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("err = %v, want the status surfaced", err)
	}
}

func TestClient_RemoteTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", 64))
	}))
	defer srv.Close()

	c := New(newUploads(t), 16)
	_, err := c.Fetch(context.Background(), engine.FileDescriptor{Location: srv.URL})
	if err == nil {
		t.Fatal("expected error for oversized remote file")
	}
	if !strings.Contains(err.Error(), "cap") {
		t.Errorf("err = %v, want cap wording", err)
	}
}

func TestClient_MissingSource(t *testing.T) {
	c := New(newUploads(t), 0)
	if _, err := c.Fetch(context.Background(), engine.FileDescriptor{Name: "x.csv"}); err == nil {
		t.Fatal("expected error for descriptor with no source")
	}
}

func TestCappedReadCloser_FailsPastCap(t *testing.T) {
	src := io.NopCloser(strings.NewReader(strings.Repeat("x", 32)))
	cr := &cappedReadCloser{r: io.LimitReader(src, 17), c: src, max: 16}

	_, err := io.ReadAll(cr)
	if err == nil {
		t.Fatal("expected error reading past the cap")
	}
	if !strings.Contains(err.Error(), "cap") {
		t.Errorf("err = %v", err)
	}
}
