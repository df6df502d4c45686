package incident

import (
	"errors"
	"fmt"
)

// ErrStartDate marks a row whose start date could not be parsed.
var ErrStartDate = errors.New("unparsable start date")

// TableNotFoundError reports that no table in a community page matched the
// expected header fingerprint.
type TableNotFoundError struct {
	Year int
	URL  string
}

func (e *TableNotFoundError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("no incident table found for %d", e.Year)
	}
	return fmt.Sprintf("no incident table found for %d at %s", e.Year, e.URL)
}

// RowError describes one row that normalization had to drop.
type RowError struct {
	Source Source
	Year   int
	Index  int
	Name   string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s %d row %d (%q): %v", e.Source, e.Year, e.Index, e.Name, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
