package govfeed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/calfire-history/internal/incident"
	"github.com/JakeFAU/calfire-history/internal/metrics"
)

// Walker is satisfied by *Scraper.
type Walker interface {
	Fetch(ctx context.Context, url string) (Result, error)
}

// SourceConfig holds the incident list URLs.
type SourceConfig struct {
	// YearURLTemplate contains a {year} placeholder.
	YearURLTemplate string
	ActiveURL       string
}

// Source turns walks into per-year batches tagged government_feed.
type Source struct {
	walker Walker
	cfg    SourceConfig
	clock  incident.Clock
	logger *zap.Logger
}

// NewSource wires a Source.
func NewSource(walker Walker, cfg SourceConfig, clock incident.Clock, logger *zap.Logger) (*Source, error) {
	if walker == nil {
		return nil, fmt.Errorf("walker is required")
	}
	if !strings.Contains(cfg.YearURLTemplate, "{year}") {
		return nil, fmt.Errorf("year url template must contain {year}")
	}
	if cfg.ActiveURL == "" {
		return nil, fmt.Errorf("active url is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{walker: walker, cfg: cfg, clock: clock, logger: logger}, nil
}

// YearURL renders the archive URL for year.
func (s *Source) YearURL(year int) string {
	return strings.ReplaceAll(s.cfg.YearURLTemplate, "{year}", strconv.Itoa(year))
}

// FetchYear scrapes the archive for one year.
func (s *Source) FetchYear(ctx context.Context, year int) (incident.Batch, error) {
	return s.fetch(ctx, s.YearURL(year), year)
}

// FetchActive scrapes the current incident list. Rows are tagged with the
// current calendar year.
func (s *Source) FetchActive(ctx context.Context) (incident.Batch, error) {
	return s.fetch(ctx, s.cfg.ActiveURL, s.clock.Now().Year())
}

func (s *Source) fetch(ctx context.Context, url string, year int) (incident.Batch, error) {
	start := time.Now()
	res, err := s.walker.Fetch(ctx, url)
	if err != nil {
		return incident.Batch{}, fmt.Errorf("government feed %d: %w", year, err)
	}
	for i := range res.Rows {
		res.Rows[i].Year = year
		res.Rows[i].Source = incident.SourceGovernmentFeed
	}
	metrics.ObserveYearFetch(string(incident.SourceGovernmentFeed), time.Since(start))
	metrics.ObserveRows(string(incident.SourceGovernmentFeed), len(res.Rows))
	s.logger.Debug("government batch fetched", zap.Int("year", year), zap.Int("rows", len(res.Rows)))
	return incident.Batch{
		Header:    res.Header,
		Rows:      res.Rows,
		Year:      year,
		Source:    incident.SourceGovernmentFeed,
		FetchedAt: s.clock.Now(),
	}, nil
}
