package engine

// pipeline.go runs the search phase. Files are processed strictly in request
// order and rows strictly in file order, so the event stream replays the
// batch deterministically. A failing file emits an error event and the batch
// moves on; the complete event always closes a run that was not abandoned.

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sidmazak/bulk-csv-editor/internal/csvio"
	"github.com/sidmazak/bulk-csv-editor/internal/store"
)

// statsInterval is the row cadence for stats snapshots.
const statsInterval = 10

// ctxCheckInterval is how many rows pass between cancellation checks.
const ctxCheckInterval = 100

type pipeline struct {
	id   string
	svc  *Service
	em   *emitter
	req  *ProcessRequest
	pred rowPredicate

	stats     ProcessStats
	artifacts []store.Artifact
	outputs   []OutputFileRecord
}

func (p *pipeline) run(ctx context.Context) {
	start := time.Now()
	p.stats.TotalFiles = len(p.req.Files)
	p.outputs = make([]OutputFileRecord, 0, len(p.req.Files))

	slog.Info("search run started",
		"run_id", p.id,
		"files", len(p.req.Files),
		"mode", p.mode(),
		"replace", p.req.ReplaceMode(),
	)

	for _, file := range p.req.Files {
		p.processFile(ctx, file)
		if ctx.Err() != nil {
			slog.Warn("search run abandoned", "run_id", p.id, "file", file.Name)
			return
		}
	}

	p.stats.CurrentFile = ""
	downloadURL, isZip := p.svc.bundleArtifacts(ctx, p.id, p.artifacts, p.em)
	p.em.send(EventComplete, CompleteData{
		OutputFiles: p.outputs,
		DownloadURL: downloadURL,
		IsZip:       isZip,
		Stats:       p.stats,
	})

	slog.Info("search run finished",
		"run_id", p.id,
		"processed_files", p.stats.ProcessedFiles,
		"matches", p.stats.TotalMatches,
		"replacements", p.stats.TotalReplacements,
		"duration", time.Since(start),
	)
}

func (p *pipeline) processFile(ctx context.Context, file FileDescriptor) {
	p.stats.CurrentFile = file.Name
	record := OutputFileRecord{OriginalPath: file.Path}
	if !p.em.send(EventFileStart, FileStartData{Filename: file.Name, Path: file.Path}) {
		return
	}

	doc, err := p.svc.loadDocument(ctx, file)
	if err != nil {
		slog.Warn("file failed", "run_id", p.id, "file", file.Name, "error", err)
		p.em.send(EventError, ErrorData{Filename: file.Name, Error: err.Error()})
		p.outputs = append(p.outputs, record)
		return
	}

	replaceMode := p.req.ReplaceMode()
	totalRows := len(doc.Rows)
	p.stats.TotalRows += totalRows

	info := FileInfoData{Filename: file.Name, TotalRows: totalRows}
	if replaceMode {
		info.FieldsToReplace = p.replaceFields(doc.Headers)
	} else {
		info.FieldsToSearch = p.searchFields(doc.Headers)
	}
	if !p.em.send(EventFileInfo, info) {
		return
	}

	targets := resolveTargets(p.req.SelectedFields, doc.Headers)
	var (
		kept         []map[string]string
		matches      int
		replacements int
	)
	if p.req.ShowOnlyMatches {
		kept = make([]map[string]string, 0, totalRows)
	}

	for i, row := range doc.Rows {
		if i%ctxCheckInterval == 0 && ctx.Err() != nil {
			return
		}

		matched, fields := p.pred.Evaluate(row, doc.Headers)
		p.stats.ProcessedRows++

		var changes []RowChange
		if matched {
			matches++
			p.stats.TotalMatches++
			if replaceMode {
				if p.req.AdvancedMode() {
					changes = applyOperations(row, p.req.ReplaceOps)
				} else {
					changes = applySingleTarget(row, targets, p.req.ReplaceTerm)
				}
				replacements += len(changes)
				p.stats.TotalReplacements += len(changes)
			} else {
				changes = attributionChanges(row, fields)
			}
			if p.req.ShowOnlyMatches {
				kept = append(kept, row)
			}
		}

		if len(changes) > 0 {
			ok := p.em.send(EventRowProcessed, RowProcessedData{
				Filename:  file.Name,
				FilePath:  file.Path,
				RowIndex:  i + 1,
				TotalRows: totalRows,
				Matches:   changes,
			})
			if !ok {
				return
			}
		}

		if p.stats.ProcessedRows%statsInterval == 0 || i == totalRows-1 {
			if !p.em.send(EventStats, p.stats) {
				return
			}
		}
	}

	if replaceMode {
		out := doc
		if p.req.ShowOnlyMatches {
			out = &csvio.Document{Headers: doc.Headers, Rows: kept}
		}
		art, err := p.svc.persist(ctx, replacedName(file.Name), out)
		if err != nil {
			slog.Error("persist failed", "run_id", p.id, "file", file.Name, "error", err)
			p.em.send(EventError, ErrorData{Filename: file.Name, Error: err.Error()})
		} else {
			p.artifacts = append(p.artifacts, art)
			record.NewPath = &art.Locator
		}
	}

	p.stats.ProcessedFiles++
	p.outputs = append(p.outputs, record)
	if !p.em.send(EventFileComplete, FileCompleteData{
		Filename:          file.Name,
		MatchesCount:      matches,
		ReplacementsCount: replacements,
		NewPath:           record.NewPath,
	}) {
		return
	}
	p.em.send(EventStats, p.stats)
}

func (p *pipeline) mode() string {
	if p.req.AdvancedMode() {
		return "advanced"
	}
	return "simple"
}

// searchFields reports which fields the run inspects: every header in simple
// mode, the active condition fields in advanced mode.
func (p *pipeline) searchFields(headers []string) []string {
	if p.req.AdvancedMode() {
		var fields []string
		for _, c := range p.req.Advanced.Conditions {
			if strings.TrimSpace(c.Value) != "" {
				fields = append(fields, c.Field)
			}
		}
		return dedupeFields(fields)
	}
	return headers
}

// replaceFields reports the replacement targets present in this file.
func (p *pipeline) replaceFields(headers []string) []string {
	if p.req.AdvancedMode() {
		set := headerSet(headers)
		var fields []string
		for _, op := range p.req.ReplaceOps {
			if set[op.Field] {
				fields = append(fields, op.Field)
			}
		}
		return dedupeFields(fields)
	}
	return resolveTargets(p.req.SelectedFields, headers)
}

func headerSet(headers []string) map[string]bool {
	set := make(map[string]bool, len(headers))
	for _, h := range headers {
		set[h] = true
	}
	return set
}
