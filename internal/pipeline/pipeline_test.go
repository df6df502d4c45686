package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/calfire-history/internal/incident"
	"github.com/JakeFAU/calfire-history/internal/normalize"
)

var govHeader = []string{"name", "start_date", "county", "acres", "containment"}
var commHeader = []string{"Name", "County", "Acres", "Start date", "Contained date", "Notes", "year"}

type fakeGov struct {
	mu       sync.Mutex
	years    []int
	failYear int
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeGov) batch(year int, name string) incident.Batch {
	row := []string{name, fmt.Sprintf("%d-06-01", year), "Kern", "100", "100%"}
	return incident.Batch{
		Header: govHeader,
		Rows:   []incident.RawRow{incident.NewRawRow(govHeader, row, year, incident.SourceGovernmentFeed)},
		Year:   year,
		Source: incident.SourceGovernmentFeed,
	}
}

func (f *fakeGov) FetchYear(_ context.Context, year int) (incident.Batch, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	f.mu.Lock()
	f.years = append(f.years, year)
	f.mu.Unlock()
	if year == f.failYear {
		return incident.Batch{}, errors.New("render failed")
	}
	return f.batch(year, fmt.Sprintf("gov-%d", year)), nil
}

func (f *fakeGov) FetchActive(context.Context) (incident.Batch, error) {
	return f.batch(2024, "active"), nil
}

type fakeCommunity struct {
	mu    sync.Mutex
	years []int
}

func (f *fakeCommunity) ExtractYear(_ context.Context, year int) (incident.Batch, error) {
	f.mu.Lock()
	f.years = append(f.years, year)
	f.mu.Unlock()
	rows := []incident.RawRow{
		incident.NewRawRow(commHeader, []string{fmt.Sprintf("comm-%d", year), "Kern", "5", "May 1", "May 3", "", fmt.Sprint(year)}, year, incident.SourceCommunityTable),
		incident.NewRawRow(commHeader, []string{"broken", "Kern", "5", "??", "", "", fmt.Sprint(year)}, year, incident.SourceCommunityTable),
	}
	return incident.Batch{Header: commHeader, Rows: rows, Year: year, Source: incident.SourceCommunityTable}, nil
}

func newTestPipeline(t *testing.T, gov *fakeGov, comm *fakeCommunity, concurrency int) *Pipeline {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC))
	p, err := New(gov, comm, normalize.New(clock, nil), clock, Config{
		CommunityFirstYear:  2010,
		GovernmentFirstYear: 2013,
		Concurrency:         concurrency,
	}, nil)
	require.NoError(t, err)
	return p
}

func names(records []incident.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func TestFetchAllSequential(t *testing.T) {
	gov, comm := &fakeGov{}, &fakeCommunity{}
	records, err := newTestPipeline(t, gov, comm, 1).FetchAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{2010, 2011, 2012}, comm.years)
	assert.Equal(t, []int{2013, 2014, 2015, 2016}, gov.years)
	assert.Equal(t, []string{"comm-2010", "comm-2011", "comm-2012", "gov-2013", "gov-2014", "gov-2015", "gov-2016"}, names(records))
	for _, r := range records {
		if r.Year < 2013 {
			assert.Equal(t, incident.SourceCommunityTable, r.Source)
		} else {
			assert.Equal(t, incident.SourceGovernmentFeed, r.Source)
		}
	}
}

func TestFetchAllConcurrentKeepsYearOrder(t *testing.T) {
	gov := &fakeGov{}
	records, err := newTestPipeline(t, gov, &fakeCommunity{}, 2).FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"comm-2010", "comm-2011", "comm-2012", "gov-2013", "gov-2014", "gov-2015", "gov-2016"}, names(records))
	assert.LessOrEqual(t, gov.peak.Load(), int32(2))
}

func TestFetchAllPropagatesYearFailure(t *testing.T) {
	_, err := newTestPipeline(t, &fakeGov{failYear: 2014}, &fakeCommunity{}, 3).FetchAll(context.Background())
	require.Error(t, err)
}

func TestFetchActive(t *testing.T) {
	records, err := newTestPipeline(t, &fakeGov{}, &fakeCommunity{}, 1).FetchActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"active"}, names(records))
}

func TestFetchYearRoutesBySource(t *testing.T) {
	gov, comm := &fakeGov{}, &fakeCommunity{}
	p := newTestPipeline(t, gov, comm, 1)

	records, err := p.FetchYear(context.Background(), 2015)
	require.NoError(t, err)
	assert.Equal(t, []string{"gov-2015"}, names(records))

	records, err = p.FetchYear(context.Background(), 2011)
	require.NoError(t, err)
	assert.Equal(t, []string{"comm-2011"}, names(records))
	assert.Equal(t, []int{2011}, comm.years)
}

func TestNewValidation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	norm := normalize.New(clock, nil)
	_, err := New(nil, &fakeCommunity{}, norm, clock, Config{CommunityFirstYear: 2002, GovernmentFirstYear: 2013}, nil)
	assert.Error(t, err)
	_, err = New(&fakeGov{}, &fakeCommunity{}, norm, clock, Config{CommunityFirstYear: 2013, GovernmentFirstYear: 2013}, nil)
	assert.Error(t, err)
}
