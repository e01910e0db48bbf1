package engine

// service.go wires the engine to its collaborators and launches runs.
//
// A run is one search or replay request. Request validation and pattern
// compilation happen synchronously so malformed input is rejected before any
// file is touched; the run itself executes on a background goroutine that
// owns the event channel for its lifetime. The process limiter bounds how
// many runs execute at once.

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sidmazak/bulk-csv-editor/internal/archive"
	"github.com/sidmazak/bulk-csv-editor/internal/csvio"
	"github.com/sidmazak/bulk-csv-editor/internal/store"
)

// ProcessTimeout is the maximum duration for one run.
var ProcessTimeout = 10 * time.Minute

// Fetcher resolves a file descriptor to its bytes. Implementations cover
// stored uploads and remote URLs.
type Fetcher interface {
	Fetch(ctx context.Context, file FileDescriptor) (io.ReadCloser, error)
}

// Service runs search and replay requests against the configured
// collaborators.
type Service struct {
	fetcher   Fetcher
	artifacts store.Store
	limiter   *ProcessLimiter
}

// NewService creates a Service. A nil limiter gets the default bounds.
func NewService(fetcher Fetcher, artifacts store.Store, limiter *ProcessLimiter) *Service {
	if limiter == nil {
		limiter = NewProcessLimiter(DefaultMaxConcurrent, DefaultAcquireWait)
	}
	return &Service{
		fetcher:   fetcher,
		artifacts: artifacts,
		limiter:   limiter,
	}
}

// Limiter exposes the process limiter for health reporting and shutdown.
func (s *Service) Limiter() *ProcessLimiter {
	return s.limiter
}

// Process starts a search-phase run. The returned channel delivers the
// ordered event stream and closes exactly once, after the complete event or
// a run-level error event. Request and pattern errors return synchronously,
// as does limiter saturation.
func (s *Service) Process(ctx context.Context, req *ProcessRequest) (<-chan Event, error) {
	if err := validateProcess(req); err != nil {
		return nil, err
	}
	pred, err := buildPredicate(req)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, ProcessTimeout)
	em := newEmitter(runCtx)
	p := &pipeline{
		id:   uuid.New().String(),
		svc:  s,
		em:   em,
		req:  req,
		pred: pred,
	}

	go func() {
		defer cancel()
		defer s.limiter.Release()
		defer em.close()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in search run", "run_id", p.id, "panic", r)
				em.send(EventError, ErrorData{Error: fmt.Sprintf("internal error: %v", r)})
			}
		}()
		p.run(runCtx)
	}()

	return em.ch, nil
}

// Replay starts a replace-phase run over a prior search's row selection.
// Same channel contract as Process.
func (s *Service) Replay(ctx context.Context, req *ReplayRequest) (<-chan Event, error) {
	if err := validateReplay(req); err != nil {
		return nil, err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, ProcessTimeout)
	em := newEmitter(runCtx)
	r := &replayRun{
		id:  uuid.New().String(),
		svc: s,
		em:  em,
		req: req,
	}

	go func() {
		defer cancel()
		defer s.limiter.Release()
		defer em.close()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic in replay run", "run_id", r.id, "panic", rec)
				em.send(EventError, ErrorData{Error: fmt.Sprintf("internal error: %v", rec)})
			}
		}()
		r.run(runCtx)
	}()

	return em.ch, nil
}

func validateProcess(req *ProcessRequest) error {
	if len(req.Files) == 0 {
		return &RequestError{Reason: "no files provided"}
	}
	if !req.AdvancedMode() && req.SearchTerm == "" {
		return &RequestError{Reason: "search term is required"}
	}
	return nil
}

func validateReplay(req *ReplayRequest) error {
	if len(req.SearchResults) == 0 {
		return &RequestError{Reason: "no search results provided"}
	}
	if len(req.ReplaceOps) == 0 {
		return &RequestError{Reason: "no replace operations provided"}
	}
	return nil
}

// loadDocument acquires one file's bytes and parses them, classifying
// failures by phase.
func (s *Service) loadDocument(ctx context.Context, file FileDescriptor) (*csvio.Document, error) {
	rc, err := s.fetcher.Fetch(ctx, file)
	if err != nil {
		return nil, &AcquisitionError{Filename: file.Name, Err: err}
	}
	defer rc.Close()

	doc, err := csvio.Parse(rc)
	if err != nil {
		return nil, &ParseError{Filename: file.Name, Err: err}
	}
	return doc, nil
}

// persist serializes a processed document and writes it through the
// artifact store.
func (s *Service) persist(ctx context.Context, name string, doc *csvio.Document) (store.Artifact, error) {
	var buf bytes.Buffer
	if err := csvio.Write(&buf, doc); err != nil {
		return store.Artifact{}, &StorageError{Name: name, Err: err}
	}
	art, err := s.artifacts.Save(ctx, name, &buf)
	if err != nil {
		return store.Artifact{}, &StorageError{Name: name, Err: err}
	}
	return art, nil
}

// bundleArtifacts derives the batch's download locator. Zero artifacts yield
// no link, a single artifact links directly, several are zipped into one
// archive persisted through the same store. Bundling failure degrades to no
// link; the per-file artifacts are already persisted individually.
func (s *Service) bundleArtifacts(ctx context.Context, runID string, artifacts []store.Artifact, em *emitter) (string, bool) {
	switch len(artifacts) {
	case 0:
		return "", false
	case 1:
		return artifacts[0].Locator, false
	}

	entries := make([]archive.Entry, len(artifacts))
	for i, art := range artifacts {
		art := art
		entries[i] = archive.Entry{
			Name: art.Name,
			Open: func() (io.ReadCloser, error) {
				rc, _, err := s.artifacts.Open(ctx, art.Key)
				return rc, err
			},
		}
	}

	name := bundleName(time.Now())
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(archive.WriteZip(pw, entries))
	}()
	art, err := s.artifacts.Save(ctx, name, pr)
	pr.Close()
	if err != nil {
		serr := &StorageError{Name: name, Err: err}
		slog.Error("bundle failed", "run_id", runID, "error", err)
		em.send(EventError, ErrorData{Error: serr.Error()})
		return "", false
	}
	return art.Locator, true
}
