package engine

// replay.go runs the replace phase over a prior search's results. Each file
// is re-acquired and re-parsed, then exactly the rows the search selected
// are mutated by offset. No predicate runs here: the selection is authority,
// even if the file's content drifted since the search.

import (
	"context"
	"log/slog"
	"time"

	"github.com/sidmazak/bulk-csv-editor/internal/store"
)

type replayRun struct {
	id  string
	svc *Service
	em  *emitter
	req *ReplayRequest

	stats     ProcessStats
	artifacts []store.Artifact
	outputs   []OutputFileRecord
}

func (r *replayRun) run(ctx context.Context) {
	start := time.Now()

	results := make([]SearchResult, 0, len(r.req.SearchResults))
	for _, sr := range r.req.SearchResults {
		if len(sr.Rows) > 0 {
			results = append(results, sr)
		}
	}
	r.stats.TotalFiles = len(results)
	r.outputs = make([]OutputFileRecord, 0, len(results))

	slog.Info("replay run started",
		"run_id", r.id,
		"files", len(results),
		"operations", len(r.req.ReplaceOps),
	)

	for _, sr := range results {
		r.replayFile(ctx, sr)
		if ctx.Err() != nil {
			slog.Warn("replay run abandoned", "run_id", r.id, "file", sr.Filename)
			return
		}
	}

	r.stats.CurrentFile = ""
	downloadURL, isZip := r.svc.bundleArtifacts(ctx, r.id, r.artifacts, r.em)
	r.em.send(EventComplete, CompleteData{
		OutputFiles: r.outputs,
		DownloadURL: downloadURL,
		IsZip:       isZip,
		Stats:       r.stats,
	})

	slog.Info("replay run finished",
		"run_id", r.id,
		"processed_files", r.stats.ProcessedFiles,
		"replacements", r.stats.TotalReplacements,
		"duration", time.Since(start),
	)
}

func (r *replayRun) replayFile(ctx context.Context, sr SearchResult) {
	r.stats.CurrentFile = sr.Filename
	record := OutputFileRecord{OriginalPath: sr.Path}
	if !r.em.send(EventFileStart, FileStartData{Filename: sr.Filename, Path: sr.Path}) {
		return
	}

	doc, err := r.svc.loadDocument(ctx, r.resolveSource(sr))
	if err != nil {
		slog.Warn("file failed", "run_id", r.id, "file", sr.Filename, "error", err)
		r.em.send(EventError, ErrorData{Filename: sr.Filename, Error: err.Error()})
		r.outputs = append(r.outputs, record)
		return
	}

	// Every operation's target field must exist before any row is touched.
	if missing := missingFields(doc.Headers, r.req.ReplaceOps); len(missing) > 0 {
		ferr := &FieldNotFoundError{Filename: sr.Filename, Fields: missing}
		slog.Warn("file failed", "run_id", r.id, "file", sr.Filename, "error", ferr)
		r.em.send(EventError, ErrorData{Filename: sr.Filename, Error: ferr.Error()})
		r.outputs = append(r.outputs, record)
		return
	}

	totalRows := len(doc.Rows)
	r.stats.TotalRows += totalRows
	if !r.em.send(EventFileInfo, FileInfoData{
		Filename:        sr.Filename,
		TotalRows:       totalRows,
		FieldsToReplace: opFields(r.req.ReplaceOps),
	}) {
		return
	}

	selected := make(map[int]bool, len(sr.Rows))
	for _, row := range sr.Rows {
		selected[row.RowIndex-1] = true
	}

	var matches, replacements int
	for i, row := range doc.Rows {
		if i%ctxCheckInterval == 0 && ctx.Err() != nil {
			return
		}
		r.stats.ProcessedRows++

		var changes []RowChange
		if selected[i] {
			matches++
			r.stats.TotalMatches++
			changes = applyOperations(row, r.req.ReplaceOps)
			replacements += len(changes)
			r.stats.TotalReplacements += len(changes)
		}

		if len(changes) > 0 {
			ok := r.em.send(EventRowProcessed, RowProcessedData{
				Filename:  sr.Filename,
				FilePath:  sr.Path,
				RowIndex:  i + 1,
				TotalRows: totalRows,
				Matches:   changes,
			})
			if !ok {
				return
			}
		}

		if r.stats.ProcessedRows%statsInterval == 0 || i == totalRows-1 {
			if !r.em.send(EventStats, r.stats) {
				return
			}
		}
	}

	// Only files that actually changed produce an artifact or count as
	// processed.
	if replacements > 0 {
		art, err := r.svc.persist(ctx, replacedName(sr.Filename), doc)
		if err != nil {
			slog.Error("persist failed", "run_id", r.id, "file", sr.Filename, "error", err)
			r.em.send(EventError, ErrorData{Filename: sr.Filename, Error: err.Error()})
		} else {
			r.artifacts = append(r.artifacts, art)
			record.NewPath = &art.Locator
		}
		r.stats.ProcessedFiles++
	}

	r.outputs = append(r.outputs, record)
	if !r.em.send(EventFileComplete, FileCompleteData{
		Filename:          sr.Filename,
		MatchesCount:      matches,
		ReplacementsCount: replacements,
		NewPath:           record.NewPath,
	}) {
		return
	}
	r.em.send(EventStats, r.stats)
}

// resolveSource picks the byte source for one result file: a caller-supplied
// original descriptor matched by name or path, else the result's own path
// treated as a locator.
func (r *replayRun) resolveSource(sr SearchResult) FileDescriptor {
	for _, f := range r.req.OriginalFiles {
		if f.Name == sr.Filename || f.Path == sr.Path {
			return f
		}
	}
	return FileDescriptor{Path: sr.Path, Name: sr.Filename, Location: sr.Path}
}

func missingFields(headers []string, ops []ReplaceOperation) []string {
	set := headerSet(headers)
	var missing []string
	for _, op := range ops {
		if !set[op.Field] {
			missing = append(missing, op.Field)
		}
	}
	return dedupeFields(missing)
}

func opFields(ops []ReplaceOperation) []string {
	fields := make([]string, 0, len(ops))
	for _, op := range ops {
		fields = append(fields, op.Field)
	}
	return dedupeFields(fields)
}
