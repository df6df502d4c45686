package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeHost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "www.fire.ca.gov", SanitizeHost("https://WWW.fire.ca.gov/incidents/2020/"))
	assert.Equal(t, "en.wikipedia.org", SanitizeHost("en.wikipedia.org"))
	assert.Equal(t, "unknown", SanitizeHost("://"))
}

func TestObserversIncrement(t *testing.T) {
	before := testutil.ToFloat64(pagesScrapedTotal.WithLabelValues("unit"))
	ObservePage("unit")
	assert.InDelta(t, before+1, testutil.ToFloat64(pagesScrapedTotal.WithLabelValues("unit")), 0.0001)

	rowsBefore := testutil.ToFloat64(rowsExtractedTotal.WithLabelValues("unit"))
	ObserveRows("unit", 3)
	ObserveRows("unit", 0)
	assert.InDelta(t, rowsBefore+3, testutil.ToFloat64(rowsExtractedTotal.WithLabelValues("unit")), 0.0001)

	ObserveRejectedRow("unit", "start_date")
	assert.GreaterOrEqual(t, testutil.ToFloat64(rowsRejectedTotal.WithLabelValues("unit", "start_date")), 1.0)

	ObserveDecision("reuse")
	SetSnapshotRecords(42)
	assert.InDelta(t, 42, testutil.ToFloat64(snapshotRecords), 0.0001)

	ObserveYearFetch("unit", time.Second)
	ObserveRateLimitDelay("https://example.com/x", 10*time.Millisecond)
}

func TestPushNoGatewayIsNoop(t *testing.T) {
	t.Parallel()

	require.NoError(t, Push(context.Background(), "", "job"))
}

func TestPushSendsToGateway(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Contains(t, r.URL.Path, "/metrics/job/calfire_history")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, Push(context.Background(), srv.URL, ""))
	assert.Equal(t, int32(1), hits.Load())
}
