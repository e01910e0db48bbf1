package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sidmazak/bulk-csv-editor/internal/config"
	"github.com/sidmazak/bulk-csv-editor/internal/engine"
	"github.com/sidmazak/bulk-csv-editor/internal/fetch"
	"github.com/sidmazak/bulk-csv-editor/internal/store"
)

// ---- test fixture -------------------------------------------------------

type testEnv struct {
	srv       *Server
	service   *engine.Service
	uploads   *store.TempFiles
	artifacts *store.DiskStore
}

// newTestEnv wires a server against real disk-backed collaborators in
// temporary directories.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	uploads, err := store.NewTempFiles(t.TempDir())
	if err != nil {
		t.Fatalf("NewTempFiles() error = %v", err)
	}
	artifacts, err := store.NewDiskStore(t.TempDir(), "/api/download")
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host: "127.0.0.1", Port: 0,
			RequestTimeout: 30 * time.Second,
		},
		Process: config.ProcessConfig{
			MaxConcurrent: 2, MaxWaitTime: 200 * time.Millisecond,
			Timeout: time.Minute, MaxFileSize: 1 << 20,
		},
		Storage: config.StorageConfig{
			Backend: "disk", DownloadPath: "/api/download",
		},
		Rate:     config.RateLimitConfig{Enabled: false},
		Security: config.SecurityConfig{EnableCSP: true},
		Logging:  config.LoggingConfig{Level: "error", Format: "text"},
	}

	limiter := engine.NewProcessLimiter(cfg.Process.MaxConcurrent, cfg.Process.MaxWaitTime)
	service := engine.NewService(fetch.New(uploads, cfg.Process.MaxFileSize), artifacts, limiter)

	return &testEnv{
		srv:       NewServer(cfg, service, uploads, artifacts),
		service:   service,
		uploads:   uploads,
		artifacts: artifacts,
	}
}

// do routes one request through the server and returns the recorder.
func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

// multipartUpload builds a multipart body with one part per name/content
// pair under the given field name.
func multipartUpload(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("CreateFormFile(%s) error = %v", name, err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write part %s: %v", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// decodeErrorResponse parses a JSON error body.
func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

// ---- upload -------------------------------------------------------------

func TestUpload_StoresFiles(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "files", map[string]string{
		"people.csv": "name,city\nAda,Albany\n",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Files) != 1 {
		t.Fatalf("files = %d, want 1", len(resp.Files))
	}

	fd := resp.Files[0]
	if fd.Name != "people.csv" {
		t.Errorf("Name = %q, want %q", fd.Name, "people.csv")
	}
	if fd.Location == "" || fd.Location != fd.Path {
		t.Errorf("Location = %q, Path = %q, want equal non-empty keys", fd.Location, fd.Path)
	}

	// The stored copy must be readable through the intake store.
	rc, err := env.uploads.Open(fd.Location)
	if err != nil {
		t.Fatalf("Open(%s) error = %v", fd.Location, err)
	}
	defer rc.Close()
}

func TestUpload_RejectsNonCSV(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "files", map[string]string{
		"notes.txt": "hello",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	resp := decodeErrorResponse(t, rec)
	if resp.Code != "REQ001" {
		t.Errorf("code = %q, want REQ001", resp.Code)
	}
}

func TestUpload_NoFiles(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "files", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUpload_SingleFileFieldFallback(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "file", map[string]string{
		"data.csv": "a,b\n1,2\n",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
}

// ---- download -----------------------------------------------------------

func TestDownload_ServesArtifact(t *testing.T) {
	env := newTestEnv(t)

	art, err := env.artifacts.Save(context.Background(), "result_replaced.csv", strings.NewReader("x,y\n1,2\n"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/download/"+art.Key, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "x,y\n1,2\n" {
		t.Errorf("body = %q, want stored bytes", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "result_replaced.csv") {
		t.Errorf("Content-Disposition = %q, want attachment with display name", cd)
	}
}

func TestDownload_UnknownKey(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/download/12345_missing.csv", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// ---- health -------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.MaxConcurrent != 2 {
		t.Errorf("maxConcurrent = %d, want 2", resp.MaxConcurrent)
	}
}

// ---- security headers ---------------------------------------------------

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if got := rec.Header().Get("Content-Security-Policy"); got == "" {
		t.Error("Content-Security-Policy header missing with CSP enabled")
	}
}

// ---- rate limiter -------------------------------------------------------

func TestRateLimiter_AllowsWithinBudget(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request over budget allowed, want rejected")
	}

	// A different IP has its own budget.
	if !rl.allow("10.0.0.2") {
		t.Error("fresh IP rejected, want allowed")
	}
}

func TestRateLimiter_ResetsAfterWindow(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)

	if !rl.allow("10.0.0.1") {
		t.Fatal("first request rejected")
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("second request allowed within window")
	}

	// Backdate the window instead of sleeping.
	rl.mu.Lock()
	rl.visitors["10.0.0.1"].lastReset = time.Now().Add(-2 * time.Minute)
	rl.mu.Unlock()

	if !rl.allow("10.0.0.1") {
		t.Error("request after window rejected, want allowed")
	}
}

func TestRateLimiter_MiddlewareRejectsWith429(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	handler := rl.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1000"

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want %d", first.Code, http.StatusOK)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want %d", second.Code, http.StatusTooManyRequests)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing on 429")
	}
}
