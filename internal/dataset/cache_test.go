package dataset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/calfire-history/internal/incident"
)

type memStore struct {
	snap    *incident.Snapshot
	saved   []incident.Snapshot
	loadErr error
	saveErr error
}

func (m *memStore) Load(context.Context) (incident.Snapshot, bool, error) {
	if m.loadErr != nil {
		return incident.Snapshot{}, false, m.loadErr
	}
	if m.snap == nil {
		return incident.Snapshot{}, false, nil
	}
	return m.snap.Clone(), true, nil
}

func (m *memStore) Save(_ context.Context, snap incident.Snapshot) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.saved = append(m.saved, snap.Clone())
	return "/tmp/" + snap.CapturedAt.Format("2006-01-02"), nil
}

type stubFetcher struct {
	all, active, year []incident.Record
	err               error
	calls             []string
	years             []int
}

func (s *stubFetcher) FetchAll(context.Context) ([]incident.Record, error) {
	s.calls = append(s.calls, "all")
	return s.all, s.err
}

func (s *stubFetcher) FetchActive(context.Context) ([]incident.Record, error) {
	s.calls = append(s.calls, "active")
	return s.active, s.err
}

func (s *stubFetcher) FetchYear(_ context.Context, year int) ([]incident.Record, error) {
	s.calls = append(s.calls, "year")
	s.years = append(s.years, year)
	return s.year, s.err
}

type recordingSink struct {
	pubs []Publication
	err  error
}

func (r *recordingSink) Publish(_ context.Context, pub Publication) error {
	r.pubs = append(r.pubs, pub)
	return r.err
}

var today = time.Date(2024, 8, 20, 9, 30, 0, 0, time.UTC)

func rec(name string, year int, acres int64) incident.Record {
	return incident.Record{Name: name, Year: year, AcresBurned: acres, Source: incident.SourceGovernmentFeed}
}

func priorAged(days int) *incident.Snapshot {
	clock := clockwork.NewFakeClockAt(today)
	return &incident.Snapshot{
		CapturedAt: clock.Now().AddDate(0, 0, -days),
		Records: []incident.Record{
			rec("Old Fire", 2010, 10),
			rec("Park Fire", 2024, 100),
			rec("Borel Fire", 2024, 50),
		},
	}
}

func names(records []incident.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func TestDecide(t *testing.T) {
	cases := []struct {
		name  string
		prior *incident.Snapshot
		want  Decision
	}{
		{"no prior", nil, ColdStart},
		{"same day", priorAged(0), Reuse},
		{"five days", priorAged(5), Reuse},
		{"nine days", priorAged(9), Reuse},
		{"ten days", priorAged(10), PatchActive},
		{"fifteen days", priorAged(15), PatchActive},
		{"twenty nine days", priorAged(29), PatchActive},
		{"thirty days", priorAged(30), RefetchYear},
		{"forty five days", priorAged(45), RefetchYear},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.prior, today))
		})
	}
}

func TestAgeDaysUsesCalendarDates(t *testing.T) {
	late := time.Date(2024, 8, 10, 23, 59, 0, 0, time.UTC)
	early := time.Date(2024, 8, 20, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 10, AgeDays(late, early))
	assert.Equal(t, 0, AgeDays(early, early.Add(time.Hour)))
}

func TestGetDatasetReuse(t *testing.T) {
	store := &memStore{snap: priorAged(5)}
	fetcher := &stubFetcher{}
	sink := &recordingSink{}
	cache, err := NewCache(store, fetcher, nil, WithSinks(sink))
	require.NoError(t, err)

	snap, err := cache.GetDataset(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, *priorAged(5), snap)
	assert.Empty(t, fetcher.calls)
	assert.Empty(t, store.saved)
	assert.Empty(t, sink.pubs)
}

func TestGetDatasetPatchActive(t *testing.T) {
	store := &memStore{snap: priorAged(15)}
	fetcher := &stubFetcher{active: []incident.Record{rec("Park Fire", 2024, 400), rec("Line Fire", 2024, 30)}}
	sink := &recordingSink{}
	cache, err := NewCache(store, fetcher, nil, WithSinks(sink))
	require.NoError(t, err)

	snap, err := cache.GetDataset(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, []string{"active"}, fetcher.calls)
	assert.Equal(t, []string{"Old Fire", "Park Fire", "Borel Fire", "Line Fire"}, names(snap.Records))
	assert.Equal(t, int64(400), snap.Records[1].AcresBurned)
	assert.Equal(t, time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC), snap.CapturedAt)

	require.Len(t, store.saved, 1)
	assert.Equal(t, snap, store.saved[0])
	require.Len(t, sink.pubs, 1)
	assert.Equal(t, PatchActive, sink.pubs[0].Decision)
	assert.Equal(t, "/tmp/2024-08-20", sink.pubs[0].Path)
}

func TestGetDatasetRefetchYear(t *testing.T) {
	store := &memStore{snap: priorAged(45)}
	fetcher := &stubFetcher{year: []incident.Record{rec("Park Fire", 2024, 429603)}}
	cache, err := NewCache(store, fetcher, nil)
	require.NoError(t, err)

	snap, err := cache.GetDataset(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, []int{2024}, fetcher.years)
	assert.Equal(t, []string{"Old Fire", "Park Fire"}, names(snap.Records))
	assert.Equal(t, int64(429603), snap.Records[1].AcresBurned)
	require.Len(t, store.saved, 1)
}

func TestGetDatasetColdStart(t *testing.T) {
	store := &memStore{}
	fetcher := &stubFetcher{all: []incident.Record{rec("Cedar Fire", 2003, 1), rec("Dixie Fire", 2021, 2)}}
	cache, err := NewCache(store, fetcher, nil)
	require.NoError(t, err)

	snap, err := cache.GetDataset(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, []string{"all"}, fetcher.calls)
	assert.Len(t, snap.Records, 2)
	require.Len(t, store.saved, 1)
}

func TestGetDatasetPersistenceFailure(t *testing.T) {
	boom := errors.New("disk full")
	store := &memStore{saveErr: boom}
	sink := &recordingSink{}
	cache, err := NewCache(store, &stubFetcher{all: []incident.Record{rec("A", 2003, 1)}}, nil, WithSinks(sink))
	require.NoError(t, err)

	_, err = cache.GetDataset(context.Background(), today)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, sink.pubs)
}

func TestGetDatasetFetchFailureLeavesStoreUntouched(t *testing.T) {
	boom := errors.New("upstream down")
	store := &memStore{snap: priorAged(15)}
	cache, err := NewCache(store, &stubFetcher{err: boom}, nil)
	require.NoError(t, err)

	_, err = cache.GetDataset(context.Background(), today)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, store.saved)
}

func TestGetDatasetSinkFailureIsNotFatal(t *testing.T) {
	store := &memStore{}
	failing := &recordingSink{err: errors.New("topic missing")}
	ok := &recordingSink{}
	cache, err := NewCache(store, &stubFetcher{all: []incident.Record{rec("A", 2003, 1)}}, nil, WithSinks(failing, ok))
	require.NoError(t, err)

	_, err = cache.GetDataset(context.Background(), today)
	require.NoError(t, err)
	assert.Len(t, ok.pubs, 1)
	assert.Equal(t, failing.pubs[0].RunID, ok.pubs[0].RunID)
}

func TestCustomThresholds(t *testing.T) {
	th := Thresholds{ReuseDays: 2, PatchDays: 4}
	assert.Equal(t, PatchActive, th.Decide(priorAged(3), today))
	assert.Equal(t, RefetchYear, th.Decide(priorAged(4), today))

	_, err := NewCache(&memStore{}, &stubFetcher{}, nil, WithThresholds(Thresholds{ReuseDays: 5, PatchDays: 5}))
	assert.Error(t, err)
}

func TestPatchActiveDoesNotMutatePrior(t *testing.T) {
	prior := priorAged(15)
	before := prior.Clone()
	_ = patchActive(prior.Records, []incident.Record{rec("Park Fire", 2024, 1)})
	assert.Equal(t, before, *prior)
}

func TestPatchActiveAppendsNewIncidentsOnce(t *testing.T) {
	records := []incident.Record{rec("Old Fire", 2010, 10), rec("Park Fire", 2024, 100)}
	active := []incident.Record{
		rec("Line Fire", 2024, 30),
		rec("Park Fire", 2024, 400),
		rec("Line Fire", 2024, 99),
	}
	out := patchActive(records, active)
	assert.Equal(t, []string{"Old Fire", "Park Fire", "Line Fire"}, names(out))
	assert.Equal(t, int64(400), out[1].AcresBurned)
	assert.Equal(t, int64(30), out[2].AcresBurned, "first active record with a name wins")
}
