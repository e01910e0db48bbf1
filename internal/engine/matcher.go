package engine

import (
	"regexp"
	"strings"
)

// fieldMatcher tests a single cell value against one compiled condition.
type fieldMatcher func(cell string) bool

// newFieldMatcher builds the matcher for one condition. Regex patterns are
// compiled exactly once here, with case-insensitivity as a compile flag; an
// invalid pattern returns a PatternError. The plain string modes lower both
// sides when the comparison is case-insensitive. Unrecognized modes fall
// back to contains.
func newFieldMatcher(mode MatchMode, pattern string, caseSensitive bool) (fieldMatcher, error) {
	if mode == ModeRegex {
		flags := ""
		if !caseSensitive {
			flags = "(?i)"
		}
		re, err := regexp.Compile(flags + pattern)
		if err != nil {
			return nil, &PatternError{Pattern: pattern, Err: err}
		}
		return re.MatchString, nil
	}

	var rel func(cell, pattern string) bool
	switch mode {
	case ModeEquals:
		rel = func(cell, pattern string) bool { return cell == pattern }
	case ModeStartsWith:
		rel = strings.HasPrefix
	case ModeEndsWith:
		rel = strings.HasSuffix
	default:
		rel = strings.Contains
	}

	if caseSensitive {
		return func(cell string) bool { return rel(cell, pattern) }, nil
	}
	want := strings.ToLower(pattern)
	return func(cell string) bool { return rel(strings.ToLower(cell), want) }, nil
}
