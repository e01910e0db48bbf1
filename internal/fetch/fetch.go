// Package fetch acquires input bytes for a run, either from the upload
// intake area or from a remote URL.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sidmazak/bulk-csv-editor/internal/engine"
	"github.com/sidmazak/bulk-csv-editor/internal/store"
)

// DefaultMaxFetchSize caps how many bytes one remote input may occupy.
const DefaultMaxFetchSize = 100 << 20 // 100 MiB

// DefaultHTTPTimeout bounds one remote fetch end to end.
const DefaultHTTPTimeout = 60 * time.Second

// Client resolves file descriptors to their bytes. Descriptors whose source
// is an http(s) URL are fetched remotely; everything else is read from the
// upload intake area by key.
type Client struct {
	uploads  *store.TempFiles
	http     *http.Client
	maxBytes int64
}

// New builds a Client over the upload intake area. maxBytes <= 0 applies
// the default cap.
func New(uploads *store.TempFiles, maxBytes int64) *Client {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFetchSize
	}
	return &Client{
		uploads:  uploads,
		http:     &http.Client{Timeout: DefaultHTTPTimeout},
		maxBytes: maxBytes,
	}
}

// Fetch implements engine.Fetcher.
func (c *Client) Fetch(ctx context.Context, file engine.FileDescriptor) (io.ReadCloser, error) {
	source := file.Location
	if source == "" {
		source = file.Path
	}
	if source == "" {
		return nil, errors.New("file has no source location")
	}
	if isRemote(source) {
		return c.fetchRemote(ctx, source)
	}
	return c.uploads.Open(source)
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func (c *Client) fetchRemote(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, */*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("remote returned %s", resp.Status)
	}
	if resp.ContentLength > c.maxBytes {
		resp.Body.Close()
		return nil, fmt.Errorf("remote file is %d bytes, cap is %d", resp.ContentLength, c.maxBytes)
	}
	return &cappedReadCloser{
		r:   io.LimitReader(resp.Body, c.maxBytes+1),
		c:   resp.Body,
		max: c.maxBytes,
	}, nil
}

// cappedReadCloser fails the read instead of silently truncating when the
// source turns out to exceed the byte cap.
type cappedReadCloser struct {
	r   io.Reader
	c   io.Closer
	n   int64
	max int64
}

func (cr *cappedReadCloser) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	if cr.n > cr.max {
		return n, fmt.Errorf("input exceeds %d byte cap", cr.max)
	}
	return n, err
}

func (cr *cappedReadCloser) Close() error {
	return cr.c.Close()
}
