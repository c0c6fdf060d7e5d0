package query

import (
	"regexp"
	"strconv"
	"strings"
)

// SANITIZE-OR-DEFAULT:
// Invalid sort, status and offset values never produce an error. Each one
// silently degrades to a safe default. Keeping the fallbacks in these small
// functions (instead of inline conditionals in every endpoint) lets the
// tests enumerate every case.

// SanitizeSort resolves sortBy/sortType against the schema's allow-list.
// An unknown column resets to the default column; a direction other than
// "asc"/"desc" resets to the default direction. The two fall back
// independently.
func SanitizeSort(s Schema, sortBy, sortType string) Sort {
	if s.FixedSort {
		return s.DefaultSort
	}
	out := s.DefaultSort
	if s.sortable(sortBy) {
		out.Column = sortBy
	}
	switch Direction(sortType) {
	case Asc, Desc:
		out.Direction = Direction(sortType)
	}
	return out
}

// SanitizeStatus reports whether status is one of the schema's enum values.
// A schema without a status filter accepts nothing.
func SanitizeStatus(s Schema, status string) (string, bool) {
	if s.StatusColumn == "" || status == "" {
		return "", false
	}
	for _, v := range s.StatusValues {
		if v == status {
			return status, true
		}
	}
	return "", false
}

// ParseOffset parses a client offset. Anything that is not a non-negative
// base-10 integer is 0.
func ParseOffset(raw string) int64 {
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// SanitizeOffset clamps a client offset to [0, total). An offset at or past
// the end falls back to 0, not to the last page.
func SanitizeOffset(raw string, total int64) int64 {
	n := ParseOffset(raw)
	if n >= total {
		return 0
	}
	return n
}

// SearchPattern turns free text into the bound pattern for IMatch. Regex
// metacharacters are escaped so the search is a literal, case-insensitive
// substring match. Invalid UTF-8 is dropped first. An empty or blank
// search yields ok=false.
func SearchPattern(search string) (string, bool) {
	search = strings.TrimSpace(strings.ToValidUTF8(search, ""))
	if search == "" {
		return "", false
	}
	return regexp.QuoteMeta(search), true
}
