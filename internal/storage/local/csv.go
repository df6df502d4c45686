package local

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/calfire-history/internal/incident"
)

// DateLayout is how dates are written to snapshot files.
const DateLayout = "2006-01-02"

// Columns is the snapshot file header.
var Columns = []string{"name", "start_date", "contained_date", "county", "acres_burned", "notes", "year", "source"}

// Encode writes records as CSV with a header row.
func Encode(w io.Writer, records []incident.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.Name,
			formatDate(rec.StartDate),
			formatDate(rec.ContainedDate),
			rec.County,
			strconv.FormatInt(rec.AcresBurned, 10),
			rec.Notes,
			strconv.Itoa(rec.Year),
			string(rec.Source),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %q: %w", rec.Name, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Decode reads records written by Encode. Columns are matched by name.
func Decode(r io.Reader) ([]incident.Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"name", "start_date", "year"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("snapshot missing column %q", required)
		}
	}
	cr.FieldsPerRecord = len(header)

	var records []incident.Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		rec, err := decodeRow(index, row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRow(index map[string]int, row []string) (incident.Record, error) {
	get := func(col string) string {
		if i, ok := index[col]; ok {
			return row[i]
		}
		return ""
	}
	var rec incident.Record
	var err error
	rec.Name = get("name")
	if rec.StartDate, err = parseDate(get("start_date")); err != nil {
		return rec, fmt.Errorf("start_date: %w", err)
	}
	if rec.ContainedDate, err = parseDate(get("contained_date")); err != nil {
		return rec, fmt.Errorf("contained_date: %w", err)
	}
	rec.County = get("county")
	if acres := get("acres_burned"); acres != "" {
		if rec.AcresBurned, err = strconv.ParseInt(acres, 10, 64); err != nil {
			return rec, fmt.Errorf("acres_burned: %w", err)
		}
	}
	rec.Notes = get("notes")
	if rec.Year, err = strconv.Atoi(get("year")); err != nil {
		return rec, fmt.Errorf("year: %w", err)
	}
	rec.Source = incident.Source(get("source"))
	return rec, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
