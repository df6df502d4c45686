// Package metrics exposes Prometheus collectors for scrape and refresh runs.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry holds every collector in this package. Runs are short-lived, so
// collectors are pushed rather than scraped.
var Registry = prometheus.NewRegistry()

var (
	factory = promauto.With(Registry)

	pagesScrapedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calfire_pages_scraped_total",
			Help: "Table pages walked, labeled by source.",
		},
		[]string{"source"},
	)

	rowsExtractedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calfire_rows_extracted_total",
			Help: "Raw rows extracted, labeled by source.",
		},
		[]string{"source"},
	)

	rowsRejectedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calfire_rows_rejected_total",
			Help: "Rows dropped during normalization, labeled by source and reason.",
		},
		[]string{"source", "reason"},
	)

	yearFetchDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calfire_year_fetch_duration_seconds",
			Help:    "Time spent fetching one year from a source.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"source"},
	)

	refreshDecisionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calfire_refresh_decisions_total",
			Help: "Refresh policy outcomes, labeled by decision.",
		},
		[]string{"decision"},
	)

	snapshotRecords = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "calfire_snapshot_records",
			Help: "Records in the most recently returned dataset snapshot.",
		},
	)

	rateLimitDelaySeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calfire_rate_limit_delay_seconds",
			Help:    "Time spent waiting on the per-host limiter.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)
)

// ObservePage counts one walked page.
func ObservePage(source string) {
	pagesScrapedTotal.WithLabelValues(source).Inc()
}

// ObserveRows counts extracted rows.
func ObserveRows(source string, n int) {
	if n <= 0 {
		return
	}
	rowsExtractedTotal.WithLabelValues(source).Add(float64(n))
}

// ObserveRejectedRow counts a row dropped during normalization.
func ObserveRejectedRow(source, reason string) {
	rowsRejectedTotal.WithLabelValues(source, reason).Inc()
}

// ObserveYearFetch records how long one year took to fetch.
func ObserveYearFetch(source string, d time.Duration) {
	yearFetchDurationSeconds.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveDecision counts a refresh policy decision.
func ObserveDecision(decision string) {
	refreshDecisionsTotal.WithLabelValues(decision).Inc()
}

// SetSnapshotRecords reports the size of the returned dataset.
func SetSnapshotRecords(n int) {
	snapshotRecords.Set(float64(n))
}

// ObserveRateLimitDelay records a limiter wait for host.
func ObserveRateLimitDelay(host string, d time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(SanitizeHost(host)).Observe(d.Seconds())
}

// SanitizeHost lower-cases a host or URL down to its hostname, or "unknown".
func SanitizeHost(raw string) string {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Push sends the registry to a Pushgateway under job. An empty gateway is a no-op.
func Push(ctx context.Context, gateway, job string) error {
	if strings.TrimSpace(gateway) == "" {
		return nil
	}
	if job == "" {
		job = "calfire_history"
	}
	if err := push.New(gateway, job).Gatherer(Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
