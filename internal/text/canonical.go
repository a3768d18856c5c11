// Package text builds canonical record texts and ranks cluster keywords.
package text

import (
	"strings"

	"github.com/risknetlabs/risknet/internal/domain"
)

// Placeholder values that spreadsheets and CSV exports leave in empty cells.
var junkValues = map[string]struct{}{
	"na": {}, "n/a": {}, "nan": {}, "none": {},
}

// cleanField trims a field, collapses internal whitespace and newlines to
// single spaces, and drops placeholder values. Returns "" for unusable input.
func cleanField(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	if _, junk := junkValues[strings.ToLower(s)]; junk {
		return ""
	}
	return s
}

// CombineRecord builds the canonical text for one record: title (twice, to
// double its weight), cause, description, space-separated. Pure and
// deterministic; returns "" only when every field is absent or blank.
func CombineRecord(r domain.RiskRecord) string {
	parts := make([]string, 0, 4)
	if title := cleanField(r.Title); title != "" {
		parts = append(parts, title, title)
	}
	if cause := cleanField(r.Cause); cause != "" {
		parts = append(parts, cause)
	}
	if desc := cleanField(r.Description); desc != "" {
		parts = append(parts, desc)
	}
	return strings.Join(parts, " ")
}

// CombineAll canonicalizes every record, index-aligned.
func CombineAll(records []domain.RiskRecord) []string {
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = CombineRecord(r)
	}
	return texts
}
