package engine

// events.go defines the ordered progress stream a run produces.
//
// One producer goroutine pushes typed events into a buffered channel; one
// consumer drains it. FIFO delivery is the only commit order a consumer may
// rely on. The channel closes exactly once, after the complete event or
// after a top-level error event. Sends select on the run context so an
// abandoned consumer stops the producer mid-file.

import "context"

// EventName identifies one progress event type.
type EventName string

const (
	EventFileStart    EventName = "file-start"
	EventFileInfo     EventName = "file-info"
	EventRowProcessed EventName = "row-processed"
	EventStats        EventName = "stats"
	EventFileComplete EventName = "file-complete"
	EventError        EventName = "error"
	EventComplete     EventName = "complete"
)

// Event is one entry in the progress stream. Data holds the payload struct
// for the event's name and serializes to the wire as JSON.
type Event struct {
	Name EventName
	Data any
}

// FileStartData announces that a file's processing began.
type FileStartData struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// FileInfoData reports what was parsed and which fields the run touches.
// FieldsToSearch is set on search-only runs, FieldsToReplace on replacing
// runs.
type FileInfoData struct {
	Filename        string   `json:"filename"`
	TotalRows       int      `json:"totalRows"`
	FieldsToSearch  []string `json:"fieldsToSearch,omitempty"`
	FieldsToReplace []string `json:"fieldsToReplace,omitempty"`
}

// RowProcessedData reports one matched row together with its per-field
// change records. Emitted immediately on the match, not batched.
type RowProcessedData struct {
	Filename  string      `json:"filename"`
	FilePath  string      `json:"filePath"`
	RowIndex  int         `json:"rowIndex"`
	TotalRows int         `json:"totalRows"`
	Matches   []RowChange `json:"matches"`
}

// FileCompleteData closes out one file. NewPath is nil when the file
// produced no artifact.
type FileCompleteData struct {
	Filename          string  `json:"filename"`
	MatchesCount      int     `json:"matchesCount"`
	ReplacementsCount int     `json:"replacementsCount"`
	NewPath           *string `json:"newPath"`
}

// ErrorData reports a per-file failure, or a run-level one when Filename is
// empty.
type ErrorData struct {
	Filename string `json:"filename,omitempty"`
	Error    string `json:"error"`
}

// CompleteData is the final event of every run that was not abandoned.
type CompleteData struct {
	OutputFiles []OutputFileRecord `json:"outputFiles"`
	DownloadURL string             `json:"downloadUrl"`
	IsZip       bool               `json:"isZip"`
	Stats       ProcessStats       `json:"stats"`
}

// eventBuffer is the channel capacity between producer and consumer. Large
// enough to absorb bursts of row events without stalling the scan on a
// momentarily slow consumer.
const eventBuffer = 256

// emitter pushes events for one run. send reports false once the run
// context is done, signaling the producer to abandon remaining work.
type emitter struct {
	ctx context.Context
	ch  chan Event
}

func newEmitter(ctx context.Context) *emitter {
	return &emitter{ctx: ctx, ch: make(chan Event, eventBuffer)}
}

func (e *emitter) send(name EventName, data any) bool {
	select {
	case e.ch <- Event{Name: name, Data: data}:
		return true
	case <-e.ctx.Done():
		return false
	}
}

func (e *emitter) close() {
	close(e.ch)
}
