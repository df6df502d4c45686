package dataset

import (
	"time"

	"github.com/JakeFAU/calfire-history/internal/incident"
)

// Decision is the refresh action chosen for a prior snapshot.
type Decision string

// Decisions, in order of increasing snapshot age.
const (
	ColdStart   Decision = "cold_start"
	Reuse       Decision = "reuse"
	PatchActive Decision = "patch_active"
	RefetchYear Decision = "refetch_year"
)

// Thresholds are snapshot ages in whole days.
type Thresholds struct {
	ReuseDays int
	PatchDays int
}

// DefaultThresholds reuse for under 10 days and patch for under 30.
func DefaultThresholds() Thresholds {
	return Thresholds{ReuseDays: 10, PatchDays: 30}
}

// AgeDays counts UTC calendar days from capturedAt to today.
func AgeDays(capturedAt, today time.Time) int {
	return int(utcDate(today).Sub(utcDate(capturedAt)).Hours() / 24)
}

func utcDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Decide picks the refresh action for prior as of today. A nil prior is a cold start.
func (th Thresholds) Decide(prior *incident.Snapshot, today time.Time) Decision {
	if prior == nil {
		return ColdStart
	}
	age := AgeDays(prior.CapturedAt, today)
	switch {
	case age < th.ReuseDays:
		return Reuse
	case age < th.PatchDays:
		return PatchActive
	default:
		return RefetchYear
	}
}

// Decide applies DefaultThresholds.
func Decide(prior *incident.Snapshot, today time.Time) Decision {
	return DefaultThresholds().Decide(prior, today)
}

// patchActive replaces records sharing a name with an active incident and
// appends actives that were not present. Matching is by exact name only.
func patchActive(records, active []incident.Record) []incident.Record {
	byName := make(map[string]incident.Record, len(active))
	for _, rec := range active {
		if _, dup := byName[rec.Name]; !dup {
			byName[rec.Name] = rec
		}
	}
	seen := make(map[string]bool, len(active))
	out := make([]incident.Record, 0, len(records)+len(active))
	for _, rec := range records {
		if repl, ok := byName[rec.Name]; ok {
			out = append(out, repl.Clone())
			seen[rec.Name] = true
			continue
		}
		out = append(out, rec)
	}
	for _, rec := range active {
		if seen[rec.Name] {
			continue
		}
		seen[rec.Name] = true
		out = append(out, rec.Clone())
	}
	return out
}

// replaceYear drops every record of year and appends fresh.
func replaceYear(records, fresh []incident.Record, year int) []incident.Record {
	out := make([]incident.Record, 0, len(records)+len(fresh))
	for _, rec := range records {
		if rec.Year != year {
			out = append(out, rec)
		}
	}
	for _, rec := range fresh {
		out = append(out, rec.Clone())
	}
	return out
}
