// Package reconcile merges the community and government histories into one
// dataset split at the year the government archive begins.
package reconcile

import "github.com/JakeFAU/calfire-history/internal/incident"

// DefaultCutoverYear is the first year covered by the government archive.
const DefaultCutoverYear = 2013

// Reconciler partitions records by year and source.
type Reconciler struct {
	CutoverYear int
}

// New returns a Reconciler for cutover. Non-positive values use DefaultCutoverYear.
func New(cutover int) Reconciler {
	if cutover <= 0 {
		cutover = DefaultCutoverYear
	}
	return Reconciler{CutoverYear: cutover}
}

// Reconcile returns community records before the cutover followed by
// government records from the cutover on. Relative order inside each part
// is preserved.
func (r Reconciler) Reconcile(government, community []incident.Record) []incident.Record {
	cutover := r.CutoverYear
	if cutover <= 0 {
		cutover = DefaultCutoverYear
	}
	out := make([]incident.Record, 0, len(government)+len(community))
	for _, rec := range community {
		if rec.Year < cutover {
			out = append(out, rec)
		}
	}
	for _, rec := range government {
		if rec.Year >= cutover {
			out = append(out, rec)
		}
	}
	return out
}
