package engine

// predicate.go decides whether a parsed row matches the request.
//
// Two strategies exist. Simple mode compiles the user's term into one regular
// expression and tests it against the row's cells joined in header order, so
// a pattern can match content spanning adjacent columns. Advanced mode
// evaluates per-field conditions under AND/OR logic. Both are compiled up
// front so a bad pattern fails the request before any file is touched.

import (
	"regexp"
	"strings"
)

// rowPredicate evaluates one parsed row, returning the boolean decision and
// the ordered set of field names that contributed to a true result. The
// field set is empty whenever the decision is false.
type rowPredicate interface {
	Evaluate(row map[string]string, headers []string) (bool, []string)
}

// buildPredicate compiles the request's predicate. Advanced mode wins when
// an advanced config with at least one condition is present.
func buildPredicate(req *ProcessRequest) (rowPredicate, error) {
	if req.AdvancedMode() {
		return newAdvancedPredicate(req.Advanced)
	}
	return newSimplePredicate(req.SearchTerm, req.CaseSensitive, req.WholeWord, req.UseRegex)
}

// simplePredicate holds the single compiled row-level pattern.
type simplePredicate struct {
	re *regexp.Regexp
}

func newSimplePredicate(term string, caseSensitive, wholeWord, useRegex bool) (*simplePredicate, error) {
	pattern := term
	if !useRegex {
		pattern = regexp.QuoteMeta(pattern)
	}
	if wholeWord {
		pattern = `\b` + pattern + `\b`
	}
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &PatternError{Pattern: term, Err: err}
	}
	return &simplePredicate{re: re}, nil
}

// Evaluate tests the pattern exactly once against the whole row. Field
// attribution is recomputed with a second per-field pass only for rows that
// already passed; the row-level test alone cannot say which column matched
// because it sees the concatenation.
func (p *simplePredicate) Evaluate(row map[string]string, headers []string) (bool, []string) {
	if !p.re.MatchString(joinRow(row, headers)) {
		return false, nil
	}
	return true, p.matchedFields(row, headers)
}

// matchedFields retests each header cell individually. A match that only
// spans column boundaries attributes to no single field and yields an empty
// set even though the row matched.
func (p *simplePredicate) matchedFields(row map[string]string, headers []string) []string {
	var fields []string
	for _, h := range headers {
		if p.re.MatchString(row[h]) {
			fields = append(fields, h)
		}
	}
	return fields
}

// joinRow concatenates the row's cells with single spaces in header order.
func joinRow(row map[string]string, headers []string) string {
	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = row[h]
	}
	return strings.Join(cells, " ")
}

// advancedPredicate combines the active (non-blank) conditions under one
// logic operator.
type advancedPredicate struct {
	logic      SearchLogic
	conditions []compiledCondition
}

type compiledCondition struct {
	field string
	match fieldMatcher
}

func newAdvancedPredicate(cfg *AdvancedSearchConfig) (*advancedPredicate, error) {
	logic := cfg.Logic
	if logic == "" {
		logic = LogicAnd
	}

	p := &advancedPredicate{logic: logic}
	for _, c := range cfg.Conditions {
		if strings.TrimSpace(c.Value) == "" {
			continue // inert condition
		}
		m, err := newFieldMatcher(c.Mode, c.Value, cfg.CaseSensitive)
		if err != nil {
			return nil, err
		}
		p.conditions = append(p.conditions, compiledCondition{field: c.Field, match: m})
	}
	return p, nil
}

// Evaluate applies the configured logic. With zero active conditions every
// row matches vacuously with no attributed fields. AND requires each
// condition's field to exist in the row and match; a missing field rejects
// the row. OR skips conditions whose field is missing and needs any remaining
// condition to match.
func (p *advancedPredicate) Evaluate(row map[string]string, _ []string) (bool, []string) {
	if len(p.conditions) == 0 {
		return true, nil
	}
	if p.logic == LogicOr {
		return p.evaluateOr(row)
	}
	return p.evaluateAnd(row)
}

func (p *advancedPredicate) evaluateAnd(row map[string]string) (bool, []string) {
	fields := make([]string, 0, len(p.conditions))
	for _, c := range p.conditions {
		cell, ok := row[c.field]
		if !ok || !c.match(cell) {
			return false, nil
		}
		fields = append(fields, c.field)
	}
	return true, dedupeFields(fields)
}

func (p *advancedPredicate) evaluateOr(row map[string]string) (bool, []string) {
	var fields []string
	for _, c := range p.conditions {
		cell, ok := row[c.field]
		if !ok {
			continue
		}
		if c.match(cell) {
			fields = append(fields, c.field)
		}
	}
	if len(fields) == 0 {
		return false, nil
	}
	return true, dedupeFields(fields)
}

// dedupeFields keeps the first occurrence of each field, preserving order.
func dedupeFields(fields []string) []string {
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
