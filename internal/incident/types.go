package incident

import "time"

// Source identifies which upstream publisher produced a record.
type Source string

// Supported sources.
const (
	SourceGovernmentFeed Source = "government_feed"
	SourceCommunityTable Source = "community_table"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceGovernmentFeed, SourceCommunityTable:
		return true
	default:
		return false
	}
}

// Record is one canonical wildfire incident.
type Record struct {
	Name          string     `json:"name"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	ContainedDate *time.Time `json:"contained_date,omitempty"`
	County        string     `json:"county"`
	AcresBurned   int64      `json:"acres_burned"`
	Year          int        `json:"year"`
	Source        Source     `json:"source"`
	Notes         string     `json:"notes,omitempty"`
}

// Cell is a single column-name/text pair inside a RawRow.
type Cell struct {
	Column string
	Text   string
}

// RawRow is one scraped table row before normalization. Cells keep the
// order in which they were read from the page.
type RawRow struct {
	Cells  []Cell
	Year   int
	Source Source
}

// Get returns the text of the first cell named column.
func (r RawRow) Get(column string) (string, bool) {
	for _, c := range r.Cells {
		if c.Column == column {
			return c.Text, true
		}
	}
	return "", false
}

// Texts returns the cell texts in order.
func (r RawRow) Texts() []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.Text
	}
	return out
}

// NewRawRow zips header and texts into a row. Missing texts become empty
// cells; texts beyond the header are dropped.
func NewRawRow(header, texts []string, year int, source Source) RawRow {
	cells := make([]Cell, len(header))
	for i, col := range header {
		cells[i].Column = col
		if i < len(texts) {
			cells[i].Text = texts[i]
		}
	}
	return RawRow{Cells: cells, Year: year, Source: source}
}

// Batch is everything one source produced for one year.
type Batch struct {
	Header    []string
	Rows      []RawRow
	Year      int
	Source    Source
	FetchedAt time.Time
}

// Snapshot is a materialized dataset and the moment it was captured.
type Snapshot struct {
	Records    []Record
	CapturedAt time.Time
}

// Clone returns a deep copy so callers can patch without touching the original.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{CapturedAt: s.CapturedAt}
	if s.Records != nil {
		out.Records = make([]Record, len(s.Records))
		for i, rec := range s.Records {
			out.Records[i] = rec.Clone()
		}
	}
	return out
}

// Clone copies the record including its date pointers.
func (r Record) Clone() Record {
	out := r
	out.StartDate = cloneTime(r.StartDate)
	out.ContainedDate = cloneTime(r.ContainedDate)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Clock returns the current time (clockwork.Clock satisfies it).
type Clock interface {
	Now() time.Time
}
