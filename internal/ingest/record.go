// Package ingest reads tabular tender exports and turns each row into a
// document record ready for embedding.
package ingest

import (
	"regexp"
	"strings"

	"github.com/cloo-solutions/licitai/internal/domain"
	"golang.org/x/text/unicode/norm"
)

// MinContentChars is the shortest content worth embedding.
const MinContentChars = 5

var whitespacePattern = regexp.MustCompile(`\s+`)

// nullMarkers are spreadsheet placeholders for a missing value.
var nullMarkers = map[string]struct{}{
	"nan":  {},
	"nat":  {},
	"none": {},
	"null": {},
}

// Record is one cleaned row.
type Record struct {
	Content  string
	Metadata map[string]string
}

// Valid reports whether the record has enough content to be stored.
func (r Record) Valid() bool {
	return len(r.Content) >= MinContentChars
}

// CleanText normalizes a cell: NFKC, single spaces, trimmed, and null
// markers mapped to "".
func CleanText(v string) string {
	if _, ok := nullMarkers[strings.ToLower(strings.TrimSpace(v))]; ok {
		return ""
	}
	v = norm.NFKC.String(v)
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(v, " "))
}

// CleanKey normalizes a header into a metadata key. The spreadsheet's own
// "id" column is kept as "id_excel" so it never clashes with the row id.
func CleanKey(v string) string {
	key := strings.ToLower(CleanText(v))
	if key == "id" {
		return domain.MetaKeyIDExcel
	}
	return key
}

// BuildRecord pairs cleaned keys with a row. Every key is kept in metadata,
// but only non-empty values contribute "key: value" parts to the content.
func BuildRecord(keys, values []string) Record {
	meta := make(map[string]string, len(keys))
	parts := make([]string, 0, len(keys))
	for i, key := range keys {
		if key == "" {
			continue
		}
		val := ""
		if i < len(values) {
			val = CleanText(values[i])
		}
		meta[key] = val
		if val != "" {
			parts = append(parts, key+": "+val)
		}
	}
	return Record{Content: strings.Join(parts, ". "), Metadata: meta}
}
