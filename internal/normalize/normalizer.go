// Package normalize maps heterogeneous scraped rows onto incident.Record.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/calfire-history/internal/incident"
	"github.com/JakeFAU/calfire-history/internal/metrics"
)

// Normalizer converts batches into canonical records.
type Normalizer struct {
	clock  incident.Clock
	logger *zap.Logger
}

// New builds a Normalizer. clock supplies "today" for batches without a fetch time.
func New(clock incident.Clock, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{clock: clock, logger: logger}
}

// Normalize converts every row of every batch, in order. Rows whose start
// date cannot be read are dropped; the returned error joins one
// *incident.RowError per dropped row and the records are still valid.
func (n *Normalizer) Normalize(batches []incident.Batch) ([]incident.Record, error) {
	var (
		records []incident.Record
		errs    []error
	)
	for _, batch := range batches {
		today := n.today(batch)
		for i, row := range batch.Rows {
			rec, err := n.record(batch, row, today)
			if err != nil {
				rowErr := &incident.RowError{Source: batch.Source, Year: rec.Year, Index: i, Name: rec.Name, Err: err}
				metrics.ObserveRejectedRow(string(batch.Source), "start_date")
				n.logger.Debug("row dropped", zap.Error(rowErr))
				errs = append(errs, rowErr)
				continue
			}
			records = append(records, rec)
		}
	}
	return records, errors.Join(errs...)
}

func (n *Normalizer) today(batch incident.Batch) time.Time {
	if !batch.FetchedAt.IsZero() {
		return dateOnly(batch.FetchedAt.UTC())
	}
	if n.clock != nil {
		return dateOnly(n.clock.Now().UTC())
	}
	return dateOnly(time.Now().UTC())
}

func canonicalCells(row incident.RawRow) map[string]string {
	out := make(map[string]string, len(row.Cells))
	for _, c := range row.Cells {
		name, keep := CanonicalColumn(c.Column)
		if !keep {
			continue
		}
		if _, seen := out[name]; seen {
			continue
		}
		out[name] = c.Text
	}
	return out
}

func (n *Normalizer) record(batch incident.Batch, row incident.RawRow, today time.Time) (incident.Record, error) {
	cells := canonicalCells(row)
	source := row.Source
	if source == "" {
		source = batch.Source
	}
	year := batch.Year
	if year == 0 {
		year = row.Year
	}
	acres, ok := cells[ColumnAcres]
	if !ok {
		acres = cells[ColumnAcresBurned]
	}
	rec := incident.Record{
		Name:        strings.TrimSpace(cells[ColumnName]),
		County:      incident.NormalizeCounty(cells[ColumnCounty]),
		AcresBurned: parseAcres(acres),
		Year:        year,
		Source:      source,
		Notes:       strings.TrimSpace(cells[ColumnNotes]),
	}

	var (
		start   time.Time
		outcome dateOutcome
	)
	if source == incident.SourceCommunityTable {
		start, outcome = parseCommunityDate(cells[ColumnStartDate], year)
	} else {
		start, outcome = parseGovernmentDate(cells[ColumnStartDate])
	}
	if outcome != dateParsed {
		return rec, fmt.Errorf("%w: %q", incident.ErrStartDate, cells[ColumnStartDate])
	}
	rec.StartDate = &start
	rec.ContainedDate = containedDate(source, cells[ColumnContainedDate], year, today)
	return rec, nil
}

// containedDate returns nil for contained fires with no usable date and
// today for fires still burning.
func containedDate(source incident.Source, raw string, year int, today time.Time) *time.Time {
	active := func() *time.Time {
		t := today
		return &t
	}
	if source == incident.SourceGovernmentFeed {
		if pct, ok := parsePercent(raw); ok {
			if pct < 100 {
				return active()
			}
			return nil
		}
	}

	var (
		t       time.Time
		outcome dateOutcome
	)
	if source == incident.SourceCommunityTable {
		// Stored contained dates may fall in the following year.
		if iso, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(raw), time.UTC); err == nil {
			return &iso
		}
		t, outcome = parseCommunityDate(raw, year)
	} else {
		t, outcome = parseGovernmentDate(raw)
	}
	switch outcome {
	case dateParsed:
		return &t
	case dateBlank, dateOutOfRange:
		return active()
	default:
		return nil
	}
}
