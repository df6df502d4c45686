package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	ordinalSuffix = regexp.MustCompile(`(\d+)(?:st|nd|rd|th)\b`)
	monthPeriod   = regexp.MustCompile(`\b([A-Z][a-z]{2,3})\.`)
	trailingYear  = regexp.MustCompile(`\s+\d{4}$`)

	dayLayouts = []string{
		"January 2, 2006",
		"2 January, 2006",
		"Jan 2, 2006",
		"2 Jan, 2006",
		"January 2 2006",
		"2 January 2006",
		"Jan 2 2006",
		"2 Jan 2006",
	}

	minTime = time.Unix(0, math.MinInt64).UTC()
	maxTime = time.Unix(0, math.MaxInt64).UTC()
)

type dateOutcome int

const (
	dateBlank dateOutcome = iota
	dateParsed
	dateOutOfRange
	dateUnparsable
)

// parseCommunityDate keeps the text before the first comma and pins it to
// year, since some pages omit the year and others repeat it. An ISO date
// already in year is taken as is, so stored snapshots read back unchanged.
func parseCommunityDate(raw string, year int) (time.Time, dateOutcome) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return time.Time{}, dateBlank
	}
	if t, err := time.ParseInLocation(time.DateOnly, text, time.UTC); err == nil && t.Year() == year {
		return t, dateParsed
	}
	day, _, _ := strings.Cut(text, ",")
	return parseDate(cleanDay(day) + ", " + strconv.Itoa(year))
}

// cleanDay reduces "Sept. 5th 2011" style text to "Sep 5".
func cleanDay(day string) string {
	day = strings.TrimSpace(day)
	day = ordinalSuffix.ReplaceAllString(day, "$1")
	day = monthPeriod.ReplaceAllString(day, "$1")
	day = strings.ReplaceAll(day, "Sept ", "Sep ")
	if strings.HasSuffix(day, "Sept") {
		day = strings.TrimSuffix(day, "Sept") + "Sep"
	}
	return trailingYear.ReplaceAllString(day, "")
}

func parseGovernmentDate(raw string) (time.Time, dateOutcome) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return time.Time{}, dateBlank
	}
	return parseDate(text)
}

// parseDate tries the explicit layouts before handing the text to dateparse.
func parseDate(text string) (time.Time, dateOutcome) {
	t, ok := parseLayouts(text)
	if !ok {
		var err error
		if t, err = dateparse.ParseIn(text, time.UTC); err != nil {
			return time.Time{}, dateUnparsable
		}
	}
	if t.Before(minTime) || t.After(maxTime) {
		return time.Time{}, dateOutOfRange
	}
	return dateOnly(t), dateParsed
}

func parseLayouts(text string) (time.Time, bool) {
	for _, layout := range dayLayouts {
		if t, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// parsePercent reads "85%" style containment. ok is false for anything else.
func parsePercent(raw string) (float64, bool) {
	text := strings.TrimSpace(raw)
	if !strings.HasSuffix(text, "%") {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(text, "%")), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseAcres drops thousands separators and keeps the leading digits.
func parseAcres(raw string) int64 {
	text := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	end := 0
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	v, err := strconv.ParseInt(text[:end], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
