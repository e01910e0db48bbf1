package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sidmazak/bulk-csv-editor/internal/engine"
	"github.com/sidmazak/bulk-csv-editor/internal/logging"
)

// uploadResponse lists the stored descriptors for one intake request. Each
// descriptor's path and location carry the temp-store key, so later search
// and replace requests can hand them straight back.
type uploadResponse struct {
	Files []engine.FileDescriptor `json:"files"`
}

// healthResponse reports service liveness plus the run limiter's state.
type healthResponse struct {
	Status          string `json:"status"`
	ActiveProcesses int    `json:"activeProcesses"`
	MaxConcurrent   int    `json:"maxConcurrent"`
}

// handleUpload stores multipart CSV uploads in the intake area and returns
// descriptors pointing at the stored copies.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Process.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.respondError(w, r, &engine.RequestError{Reason: "file too large or invalid form"}, http.StatusBadRequest)
		return
	}

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		parts = r.MultipartForm.File["file"]
	}
	if len(parts) == 0 {
		s.respondError(w, r, &engine.RequestError{Reason: "no files provided"}, http.StatusBadRequest)
		return
	}

	files := make([]engine.FileDescriptor, 0, len(parts))
	for _, header := range parts {
		if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
			s.respondError(w, r, &engine.RequestError{
				Reason: fmt.Sprintf("%s is not a CSV file", header.Filename),
			}, http.StatusBadRequest)
			return
		}

		part, err := header.Open()
		if err != nil {
			s.respondError(w, r, fmt.Errorf("open upload part %s: %w", header.Filename, err), http.StatusInternalServerError)
			return
		}
		key, err := s.uploads.Put(header.Filename, part)
		part.Close()
		if err != nil {
			s.respondError(w, r, &engine.StorageError{Name: header.Filename, Err: err}, http.StatusInternalServerError)
			return
		}

		files = append(files, engine.FileDescriptor{
			Path:     key,
			Name:     header.Filename,
			Location: key,
		})
	}

	logging.FromContext(r.Context()).Info("uploads stored", "count", len(files))
	writeJSON(w, uploadResponse{Files: files})
}

// handleSearch validates a search request, then streams run progress as SSE.
// Validation and pattern errors come back as plain JSON before the stream
// starts; limiter saturation maps to 429.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req engine.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, &engine.RequestError{Reason: "malformed JSON body"}, http.StatusBadRequest)
		return
	}

	events, err := s.service.Process(r.Context(), &req)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}

	s.streamEvents(w, r, events)
}

// handleReplaceSelected applies replace operations to a prior search's row
// selection. Same synchronous-validate-then-stream contract as search.
func (s *Server) handleReplaceSelected(w http.ResponseWriter, r *http.Request) {
	var req engine.ReplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, &engine.RequestError{Reason: "malformed JSON body"}, http.StatusBadRequest)
		return
	}

	events, err := s.service.Replay(r.Context(), &req)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}

	s.streamEvents(w, r, events)
}

// handleDownload streams one stored artifact as an attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing download key")
		return
	}

	rc, info, err := s.artifacts.Open(r.Context(), key)
	if err != nil {
		logging.FromContext(r.Context()).Warn("download miss", "key", key, "error", err)
		writeError(w, http.StatusNotFound, "file not found or expired")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, info.Name))
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if !info.ModTime.IsZero() {
		w.Header().Set("Last-Modified", info.ModTime.UTC().Format(http.TimeFormat))
	}

	if _, err := io.Copy(w, rc); err != nil {
		logging.FromContext(r.Context()).Warn("download aborted", "key", key, "error", err)
	}
}

// handleHealth reports liveness and the limiter's occupancy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.service.Limiter().Status()
	writeJSON(w, healthResponse{
		Status:          "ok",
		ActiveProcesses: status.Active,
		MaxConcurrent:   status.MaxConcurrent,
	})
}
