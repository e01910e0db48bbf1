package engine

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestReplay_MutatesOnlySelectedRows(t *testing.T) {
	svc, _, artifacts := newTestService(map[string]string{
		"data.csv": "name,city,state\nAda,Albany,NY\nBob,Austin,TX\nCy,Chicago,NY\n",
	})

	events, err := svc.Replay(context.Background(), &ReplayRequest{
		SearchResults: []SearchResult{{
			Filename: "data.csv",
			Path:     "/tmp/data.csv",
			Rows:     []SearchResultRow{{RowIndex: 1}, {RowIndex: 3}},
		}},
		ReplaceOps: []ReplaceOperation{{Field: "state", Value: "Confirmed"}},
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	got := collectEvents(t, events)

	wantNames := []EventName{
		EventFileStart, EventFileInfo, EventRowProcessed, EventRowProcessed,
		EventStats, EventFileComplete, EventStats, EventComplete,
	}
	if !reflect.DeepEqual(eventNames(got), wantNames) {
		t.Fatalf("event sequence = %v, want %v", eventNames(got), wantNames)
	}

	// Exactly the selected offsets change; the row between them is untouched
	// even though it would have been written had a predicate been re-run
	keys := artifacts.savedKeys()
	if len(keys) != 1 {
		t.Fatalf("saved objects = %v", keys)
	}
	want := "name,city,state\nAda,Albany,Confirmed\nBob,Austin,TX\nCy,Chicago,Confirmed\n"
	if gotBytes, _ := artifacts.bytesFor(keys[0]); string(gotBytes) != want {
		t.Errorf("artifact = %q, want %q", gotBytes, want)
	}

	first := got[2].Data.(RowProcessedData)
	if first.RowIndex != 1 {
		t.Errorf("first changed row = %d, want 1", first.RowIndex)
	}
	second := got[3].Data.(RowProcessedData)
	if second.RowIndex != 3 {
		t.Errorf("second changed row = %d, want 3", second.RowIndex)
	}

	done := got[5].Data.(FileCompleteData)
	if done.MatchesCount != 2 || done.ReplacementsCount != 2 || done.NewPath == nil {
		t.Errorf("file complete = %+v", done)
	}

	data := completeData(t, got)
	if data.DownloadURL != "/api/download/"+keys[0] || data.IsZip {
		t.Errorf("download = %q isZip=%v", data.DownloadURL, data.IsZip)
	}
	wantStats := ProcessStats{
		TotalFiles:        1,
		ProcessedFiles:    1,
		TotalRows:         3,
		ProcessedRows:     3,
		TotalMatches:      2,
		TotalReplacements: 2,
	}
	if data.Stats != wantStats {
		t.Errorf("stats = %+v, want %+v", data.Stats, wantStats)
	}
}

func TestReplay_FieldNotFoundSkipsFile(t *testing.T) {
	svc, _, artifacts := newTestService(map[string]string{
		"nostate.csv": "name,city\nAda,Albany\n",
		"good.csv":    "name,state\nBob,TX\n",
	})

	events, err := svc.Replay(context.Background(), &ReplayRequest{
		SearchResults: []SearchResult{
			{Filename: "nostate.csv", Path: "/tmp/nostate.csv", Rows: []SearchResultRow{{RowIndex: 1}}},
			{Filename: "good.csv", Path: "/tmp/good.csv", Rows: []SearchResultRow{{RowIndex: 1}}},
		},
		ReplaceOps: []ReplaceOperation{{Field: "state", Value: "NY"}},
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	got := collectEvents(t, events)

	// The file without the target field fails before any row is touched
	wantNames := []EventName{
		EventFileStart, EventError,
		EventFileStart, EventFileInfo, EventRowProcessed, EventStats, EventFileComplete, EventStats,
		EventComplete,
	}
	if !reflect.DeepEqual(eventNames(got), wantNames) {
		t.Fatalf("event sequence = %v, want %v", eventNames(got), wantNames)
	}

	errEv := got[1].Data.(ErrorData)
	if errEv.Filename != "nostate.csv" {
		t.Errorf("error filename = %q", errEv.Filename)
	}
	if !strings.Contains(errEv.Error, "fields not found") || !strings.Contains(errEv.Error, "state") {
		t.Errorf("error = %q", errEv.Error)
	}

	if keys := artifacts.savedKeys(); len(keys) != 1 {
		t.Errorf("saved objects = %v, want only the surviving file's artifact", keys)
	}

	data := completeData(t, got)
	if data.Stats.TotalFiles != 2 || data.Stats.ProcessedFiles != 1 {
		t.Errorf("stats = %+v", data.Stats)
	}
	if data.OutputFiles[0].NewPath != nil {
		t.Error("skipped file must not report an artifact")
	}
}

func TestReplay_NoChangeFilesNotCounted(t *testing.T) {
	// The selected row already holds the target value, as after a rerun of
	// the same replacement
	svc, _, artifacts := newTestService(map[string]string{
		"data.csv": "name,state\nAda,NY\n",
	})

	events, err := svc.Replay(context.Background(), &ReplayRequest{
		SearchResults: []SearchResult{{
			Filename: "data.csv",
			Path:     "/tmp/data.csv",
			Rows:     []SearchResultRow{{RowIndex: 1}},
		}},
		ReplaceOps: []ReplaceOperation{{Field: "state", Value: "NY"}},
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	got := collectEvents(t, events)

	if keys := artifacts.savedKeys(); len(keys) != 0 {
		t.Errorf("saved objects = %v, want none for a no-op replay", keys)
	}
	if n := countEvents(got, EventRowProcessed); n != 0 {
		t.Errorf("row events = %d, want 0", n)
	}

	data := completeData(t, got)
	if data.Stats.ProcessedFiles != 0 {
		t.Errorf("ProcessedFiles = %d, want 0 when nothing changed", data.Stats.ProcessedFiles)
	}
	if data.DownloadURL != "" {
		t.Errorf("DownloadURL = %q, want empty", data.DownloadURL)
	}

	// The file still completes, reporting the visit but no work
	var done FileCompleteData
	for _, ev := range got {
		if ev.Name == EventFileComplete {
			done = ev.Data.(FileCompleteData)
		}
	}
	if done.MatchesCount != 1 || done.ReplacementsCount != 0 || done.NewPath != nil {
		t.Errorf("file complete = %+v", done)
	}
}

func TestReplay_SelectionPastEOFIsNoOp(t *testing.T) {
	// Content drifted shorter since the search; the stale offset lands
	// nowhere
	svc, _, artifacts := newTestService(map[string]string{
		"data.csv": "name,state\nAda,NY\n",
	})

	events, err := svc.Replay(context.Background(), &ReplayRequest{
		SearchResults: []SearchResult{{
			Filename: "data.csv",
			Path:     "/tmp/data.csv",
			Rows:     []SearchResultRow{{RowIndex: 99}},
		}},
		ReplaceOps: []ReplaceOperation{{Field: "state", Value: "TX"}},
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	got := collectEvents(t, events)

	if keys := artifacts.savedKeys(); len(keys) != 0 {
		t.Errorf("saved objects = %v, want none", keys)
	}
	data := completeData(t, got)
	if data.Stats.ProcessedFiles != 0 || data.Stats.TotalMatches != 0 {
		t.Errorf("stats = %+v", data.Stats)
	}
}

func TestReplay_SkipsResultsWithoutRows(t *testing.T) {
	svc, _, _ := newTestService(map[string]string{
		"selected.csv": "state\nNY\n",
	})

	events, err := svc.Replay(context.Background(), &ReplayRequest{
		SearchResults: []SearchResult{
			{Filename: "deselected.csv", Path: "/tmp/deselected.csv"},
			{Filename: "selected.csv", Path: "/tmp/selected.csv", Rows: []SearchResultRow{{RowIndex: 1}}},
		},
		ReplaceOps: []ReplaceOperation{{Field: "state", Value: "TX"}},
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	got := collectEvents(t, events)

	// The row-less result never enters the run, not even as a file-start
	if n := countEvents(got, EventFileStart); n != 1 {
		t.Errorf("file starts = %d, want 1", n)
	}
	start := got[0].Data.(FileStartData)
	if start.Filename != "selected.csv" {
		t.Errorf("started file = %q", start.Filename)
	}

	data := completeData(t, got)
	if data.Stats.TotalFiles != 1 {
		t.Errorf("TotalFiles = %d, want 1", data.Stats.TotalFiles)
	}
}

func TestReplay_ResolvesOriginalFiles(t *testing.T) {
	// The fetcher sees the original descriptor's location when the caller
	// supplies one for the result's filename
	svc, fetcher, _ := newTestService(map[string]string{
		"data.csv": "state\nNY\n",
	})

	events, err := svc.Replay(context.Background(), &ReplayRequest{
		SearchResults: []SearchResult{{
			Filename: "data.csv",
			Path:     "/tmp/data.csv",
			Rows:     []SearchResultRow{{RowIndex: 1}},
		}},
		OriginalFiles: []FileDescriptor{
			{Path: "/tmp/data.csv", Name: "data.csv", Location: "uploads/abc_data.csv"},
		},
		ReplaceOps: []ReplaceOperation{{Field: "state", Value: "TX"}},
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	collectEvents(t, events)

	fetched := fetcher.fetchedDescriptors()
	if len(fetched) != 1 {
		t.Fatalf("fetches = %d, want 1", len(fetched))
	}
	if fetched[0].Location != "uploads/abc_data.csv" {
		t.Errorf("fetched location = %q, want the original descriptor's", fetched[0].Location)
	}
}
