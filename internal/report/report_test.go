package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/calfire-history/internal/incident"
)

func fire(name, county string, year int, month time.Month, acres int64) incident.Record {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return incident.Record{Name: name, County: county, Year: year, StartDate: &start, AcresBurned: acres}
}

func sample() []incident.Record {
	return []incident.Record{
		fire("Cedar", "San Diego", 2003, time.October, 273246),
		fire("Old", "San Bernardino", 2003, time.October, 91281),
		fire("Tubbs", "Sonoma", 2017, time.October, 36807),
		fire("Thomas", "Ventura, Santa Barbara", 2017, time.December, 281893),
		fire("Border", "Mexico", 2017, time.July, 10),
		fire("Rim", "Tuolumne", 2013, time.August, 257314),
		fire("Witch", "San Diego", 2007, time.October, 197990),
	}
}

func TestAnnual(t *testing.T) {
	rows := Annual(sample())
	require.Len(t, rows, 4)
	assert.Equal(t, "2003", rows[0].Key)
	assert.Equal(t, 2, rows[0].Fires)
	assert.Equal(t, int64(364527), rows[0].TotalAcres)
	assert.Equal(t, int64(273246), rows[0].LargestAcres)
	assert.Equal(t, "2017", rows[3].Key)
	assert.Equal(t, 3, rows[3].Fires)
}

func TestMonthly(t *testing.T) {
	recs := append(sample(), incident.Record{Name: "undated", AcresBurned: 5})
	rows := Monthly(recs)
	var keys []string
	for _, r := range rows {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"July", "August", "October", "December"}, keys)
	assert.Equal(t, 4, rows[2].Fires)
}

func TestByCounty(t *testing.T) {
	rows := ByCounty(sample())
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.Key
	}
	assert.NotContains(t, keys, "Mexico")
	assert.Equal(t, "San Diego", rows[0].Key)
	assert.Equal(t, 2, rows[0].Fires)
	assert.Equal(t, RegionSoCal, rows[0].Region)
	assert.Contains(t, keys, incident.MultipleCounties)
	for _, r := range rows {
		switch r.Key {
		case incident.MultipleCounties:
			assert.Equal(t, RegionMultiple, r.Region)
		case "Sonoma":
			assert.Equal(t, RegionBayArea, r.Region)
		case "Tuolumne":
			assert.Equal(t, RegionSierras, r.Region)
		}
	}
}

func TestSanFranciscoUnits(t *testing.T) {
	r := Row{TotalAcres: 60044, LargestAcres: 30022}
	assert.InDelta(t, 2.0, r.TotalSF(), 0.001)
	assert.InDelta(t, 1.0, r.LargestSF(), 0.001)
}

func TestRegionOf(t *testing.T) {
	assert.Equal(t, RegionOther, RegionOf("Shasta"))
	assert.Equal(t, RegionSoCal, RegionOf("Los Angeles"))
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "Annual", Annual(sample())))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Annual\n"))
	assert.Contains(t, out, "2003")
	assert.Contains(t, out, "364527")
	assert.Contains(t, out, "12.14")
}
