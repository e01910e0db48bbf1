// Package csvio parses and serializes delimited tabular text.
//
// Parsing is tolerant of dirty input: ragged rows are accepted, quotes are
// lazy, a UTF-8 BOM is stripped and invalid byte sequences are sanitized
// before they reach the CSV reader. Header names are trimmed and deduplicated
// (first occurrence wins) so downstream row access is by stable field name.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Document is the parsed form of one tabular file: ordered deduplicated
// headers plus one map per data row keyed by those headers.
type Document struct {
	Headers []string
	Rows    []map[string]string
}

// Parse reads delimited text into a Document. The first record becomes the
// header row; fully empty data rows are dropped. An empty input yields an
// empty Document rather than an error.
func Parse(r io.Reader) (*Document, error) {
	cr := csv.NewReader(NewSanitizedReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return &Document{}, nil
	}

	headers, cols := dedupeHeaders(records[0])

	doc := &Document{Headers: headers}
	for _, record := range records[1:] {
		if isEmptyRow(record) {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			col := cols[i]
			if col < len(record) {
				row[h] = record[col]
			} else {
				row[h] = ""
			}
		}
		doc.Rows = append(doc.Rows, row)
	}
	return doc, nil
}

// Write serializes a Document back to CSV in header order. Rows missing a
// header key serialize that cell as empty.
func Write(w io.Writer, doc *Document) error {
	cw := csv.NewWriter(w)

	if len(doc.Headers) > 0 {
		if err := cw.Write(doc.Headers); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	record := make([]string, len(doc.Headers))
	for _, row := range doc.Rows {
		for i, h := range doc.Headers {
			record[i] = row[h]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// dedupeHeaders trims each header cell and keeps the first occurrence of
// every name. The returned cols slice maps each kept header back to its
// original column index so duplicated columns read from the first one.
func dedupeHeaders(record []string) (headers []string, cols []int) {
	seen := make(map[string]bool, len(record))
	for i, cell := range record {
		name := strings.TrimSpace(cell)
		if seen[name] {
			continue
		}
		seen[name] = true
		headers = append(headers, name)
		cols = append(cols, i)
	}
	return headers, cols
}

func isEmptyRow(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
