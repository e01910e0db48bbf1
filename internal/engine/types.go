// Package engine implements the streaming CSV search/replace core.
// This package has no transport dependencies; any frontend can consume
// its ordered event stream.
package engine

// MatchMode selects how a field condition compares against a cell value.
type MatchMode string

const (
	ModeContains   MatchMode = "contains"
	ModeEquals     MatchMode = "equals"
	ModeRegex      MatchMode = "regex"
	ModeStartsWith MatchMode = "startsWith"
	ModeEndsWith   MatchMode = "endsWith"
)

// SearchLogic combines field conditions in advanced mode.
type SearchLogic string

const (
	LogicAnd SearchLogic = "AND"
	LogicOr  SearchLogic = "OR"
)

// FileDescriptor identifies one input file. Path is the opaque identity used
// to group results back to files (display names may collide across sources).
// Location points at the bytes: a stored-upload key or a remote URL. An empty
// Location falls back to Path.
type FileDescriptor struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// FieldCondition is one per-field test in advanced mode. A condition whose
// value is blank is inert and excluded from evaluation.
type FieldCondition struct {
	Field string    `json:"field"`
	Value string    `json:"value"`
	Mode  MatchMode `json:"mode"`
}

// AdvancedSearchConfig combines an ordered list of field conditions under
// AND/OR logic. Logic defaults to AND when empty.
type AdvancedSearchConfig struct {
	Conditions    []FieldCondition `json:"conditions"`
	Logic         SearchLogic      `json:"logic,omitempty"`
	CaseSensitive bool             `json:"caseSensitive"`
}

// ReplaceOperation writes Value into Field on targeted rows.
type ReplaceOperation struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// RowChange records one observed or applied cell modification. In search-only
// mode OldValue equals NewValue, signaling "matched but unmodified".
type RowChange struct {
	Field    string `json:"field"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
}

// SearchResultRow is one matched row as the client retains it between the
// search phase and the replace phase.
type SearchResultRow struct {
	// RowIndex is the stable 1-based position in the parsed row sequence;
	// RowIndex-1 recovers the 0-based offset.
	RowIndex int               `json:"rowIndex"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// SearchResult groups a prior search's matched rows for one file. It is the
// sole carrier of "which rows matched" across phases; the server keeps no
// session state.
type SearchResult struct {
	Filename string            `json:"filename"`
	Path     string            `json:"path"`
	Rows     []SearchResultRow `json:"rows"`
}

// OutputFileRecord pairs an input file with its produced artifact locator.
// A nil NewPath means the file produced no output.
type OutputFileRecord struct {
	OriginalPath string  `json:"originalPath"`
	NewPath      *string `json:"newPath"`
}

// ProcessStats holds the running totals for one request. It is mutated only
// by that request's pipeline goroutine; events carry value snapshots.
type ProcessStats struct {
	TotalFiles        int    `json:"totalFiles"`
	ProcessedFiles    int    `json:"processedFiles"`
	TotalRows         int    `json:"totalRows"`
	ProcessedRows     int    `json:"processedRows"`
	TotalMatches      int    `json:"totalMatches"`
	TotalReplacements int    `json:"totalReplacements"`
	CurrentFile       string `json:"currentFile,omitempty"`
}

// ProcessRequest is the search-phase input. Simple mode uses SearchTerm and
// friends; supplying an advanced config with at least one condition switches
// to per-field matching and ReplaceOperations.
type ProcessRequest struct {
	Files []FileDescriptor `json:"files"`

	SearchTerm    string `json:"searchTerm"`
	CaseSensitive bool   `json:"caseSensitive"`
	WholeWord     bool   `json:"wholeWord"`
	UseRegex      bool   `json:"useRegex"`
	// ReplaceTerm empty keeps a simple-mode run search-only.
	ReplaceTerm string `json:"replaceTerm"`

	Advanced   *AdvancedSearchConfig `json:"advancedSearch,omitempty"`
	ReplaceOps []ReplaceOperation    `json:"replaceOperations,omitempty"`

	// SelectedFields restricts simple-mode replacement targets. Empty, or any
	// entry equal to "All", targets every header.
	SelectedFields  []string `json:"selectedFields,omitempty"`
	ShowOnlyMatches bool     `json:"showOnlyMatches"`
}

// AdvancedMode reports whether per-field conditions drive matching.
func (r *ProcessRequest) AdvancedMode() bool {
	return r.Advanced != nil && len(r.Advanced.Conditions) > 0
}

// ReplaceMode reports whether the run rewrites cells and produces artifacts.
func (r *ProcessRequest) ReplaceMode() bool {
	if r.AdvancedMode() {
		return len(r.ReplaceOps) > 0
	}
	return r.ReplaceTerm != ""
}

// ReplayRequest is the replace-phase input: mutate exactly the rows a prior
// search selected, without re-evaluating predicates. OriginalFiles, when
// present, resolves each result's byte source by filename or path; otherwise
// the result's own path is treated as the locator.
type ReplayRequest struct {
	SearchResults []SearchResult     `json:"searchResults"`
	OriginalFiles []FileDescriptor   `json:"originalFiles,omitempty"`
	ReplaceOps    []ReplaceOperation `json:"replaceOperations"`
}
