package normalize

import "strings"

// Canonical column names.
const (
	ColumnName          = "name"
	ColumnCounty        = "county"
	ColumnAcres         = "acres"
	ColumnAcresBurned   = "acres_burned"
	ColumnStartDate     = "start_date"
	ColumnContainedDate = "contained_date"
	ColumnNotes         = "notes"
	ColumnYear          = "year"
)

var droppedColumns = map[string]bool{"Km2": true, "Ref": true}

// CanonicalColumn maps a header as published to its canonical name. The
// second result is false for columns that are dropped. Canonical names map
// to themselves.
func CanonicalColumn(name string) (string, bool) {
	if droppedColumns[name] {
		return "", false
	}
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "contain"):
		return ColumnContainedDate, true
	case strings.Contains(lower, "start"):
		return ColumnStartDate, true
	default:
		return lower, true
	}
}
