// Package report aggregates a wildfire snapshot by year, month and county.
package report

import (
	"sort"
	"strconv"
	"time"

	"github.com/JakeFAU/calfire-history/internal/incident"
)

// SanFranciscoAcres is the land area of San Francisco, used as a unit of burned area.
const SanFranciscoAcres = 30022.4

// excludedCounties hold the odd out-of-state fire and are left out of county totals.
var excludedCounties = map[string]bool{
	"State of Oregon": true,
	"State of Nevada": true,
	"Mexico":          true,
}

// Row is one aggregate line.
type Row struct {
	Key          string
	Fires        int
	TotalAcres   int64
	LargestAcres int64
	Region       Region
}

// TotalSF is the burned area in San Franciscos.
func (r Row) TotalSF() float64 {
	return float64(r.TotalAcres) / SanFranciscoAcres
}

// LargestSF is the largest fire in San Franciscos.
func (r Row) LargestSF() float64 {
	return float64(r.LargestAcres) / SanFranciscoAcres
}

func (r *Row) add(rec incident.Record) {
	r.Fires++
	r.TotalAcres += rec.AcresBurned
	if rec.AcresBurned > r.LargestAcres {
		r.LargestAcres = rec.AcresBurned
	}
}

type aggregator struct {
	rows  map[string]*Row
	order []string
}

func newAggregator() *aggregator {
	return &aggregator{rows: make(map[string]*Row)}
}

func (a *aggregator) add(key string, rec incident.Record) *Row {
	row, ok := a.rows[key]
	if !ok {
		row = &Row{Key: key}
		a.rows[key] = row
		a.order = append(a.order, key)
	}
	row.add(rec)
	return row
}

func (a *aggregator) result() []Row {
	out := make([]Row, 0, len(a.order))
	for _, k := range a.order {
		out = append(out, *a.rows[k])
	}
	return out
}

// Annual aggregates by year, oldest first.
func Annual(records []incident.Record) []Row {
	agg := newAggregator()
	for _, rec := range records {
		agg.add(strconv.Itoa(rec.Year), rec)
	}
	rows := agg.result()
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}

// Monthly aggregates by calendar month of the start date. Records without
// a start date are skipped.
func Monthly(records []incident.Record) []Row {
	agg := newAggregator()
	byMonth := make(map[string]time.Month)
	for _, rec := range records {
		if rec.StartDate == nil {
			continue
		}
		m := rec.StartDate.Month()
		byMonth[m.String()] = m
		agg.add(m.String(), rec)
	}
	rows := agg.result()
	sort.Slice(rows, func(i, j int) bool { return byMonth[rows[i].Key] < byMonth[rows[j].Key] })
	return rows
}

// ByCounty aggregates by county, most fires first. Out-of-state entries are dropped.
func ByCounty(records []incident.Record) []Row {
	agg := newAggregator()
	for _, rec := range records {
		county := incident.NormalizeCounty(rec.County)
		if excludedCounties[county] {
			continue
		}
		agg.add(county, rec).Region = RegionOf(county)
	}
	rows := agg.result()
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Fires != rows[j].Fires {
			return rows[i].Fires > rows[j].Fires
		}
		return rows[i].Key < rows[j].Key
	})
	return rows
}
