package engine

// applicator.go rewrites cells on rows the predicate accepted and records a
// change per field whose value actually differed. No-op writes are neither
// counted nor recorded.

// applySingleTarget writes one universal value into every target field of
// the row. Target fields absent from the row are skipped.
func applySingleTarget(row map[string]string, targets []string, value string) []RowChange {
	var changes []RowChange
	for _, f := range targets {
		old, ok := row[f]
		if !ok || old == value {
			continue
		}
		row[f] = value
		changes = append(changes, RowChange{Field: f, OldValue: old, NewValue: value})
	}
	return changes
}

// applyOperations applies each (field, value) operation independently.
// Operations naming fields absent from the row are silently skipped; the
// replay path screens for missing fields before any row is touched instead.
func applyOperations(row map[string]string, ops []ReplaceOperation) []RowChange {
	var changes []RowChange
	for _, op := range ops {
		old, ok := row[op.Field]
		if !ok || old == op.Value {
			continue
		}
		row[op.Field] = op.Value
		changes = append(changes, RowChange{Field: op.Field, OldValue: old, NewValue: op.Value})
	}
	return changes
}

// attributionChanges builds matched-but-unmodified records (old == new) for
// search-only runs, one per attributed field.
func attributionChanges(row map[string]string, fields []string) []RowChange {
	changes := make([]RowChange, 0, len(fields))
	for _, f := range fields {
		v := row[f]
		changes = append(changes, RowChange{Field: f, OldValue: v, NewValue: v})
	}
	return changes
}

// resolveTargets expands the caller's selected fields against the file's
// headers, preserving header order. An empty selection or an "All" entry
// targets every header; names missing from the headers are dropped, per-file.
func resolveTargets(selected, headers []string) []string {
	if len(selected) == 0 {
		return headers
	}
	for _, f := range selected {
		if f == "All" {
			return headers
		}
	}

	want := make(map[string]bool, len(selected))
	for _, f := range selected {
		want[f] = true
	}
	var targets []string
	for _, h := range headers {
		if want[h] {
			targets = append(targets, h)
		}
	}
	return targets
}
