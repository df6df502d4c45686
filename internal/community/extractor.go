// Package community extracts yearly wildfire tables from encyclopedia pages
// whose column sets drift from year to year.
package community

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/calfire-history/internal/fetcher/colly"
	"github.com/JakeFAU/calfire-history/internal/incident"
	"github.com/JakeFAU/calfire-history/internal/metrics"
)

// YearColumn is appended to every header and carries the page year.
const YearColumn = "year"

// notesPaddedWidth is the width of rows that omit the trailing notes cell.
const notesPaddedWidth = 6

// DocumentFetcher downloads a page. *collyfetcher.Fetcher satisfies it.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (collyfetcher.Document, error)
}

// Config controls where pages come from and how missing tables are handled.
type Config struct {
	// URLTemplate contains a {year} placeholder.
	URLTemplate string
	// SkipMissing logs and skips years without a matching table instead of failing.
	SkipMissing bool
}

// Extractor fetches and parses one year at a time.
type Extractor struct {
	fetcher  DocumentFetcher
	selector TableSelector
	cfg      Config
	clock    incident.Clock
	logger   *zap.Logger
}

// NewExtractor wires an Extractor. A nil selector uses DefaultSelector.
func NewExtractor(fetcher DocumentFetcher, selector TableSelector, cfg Config, clock incident.Clock, logger *zap.Logger) (*Extractor, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("document fetcher is required")
	}
	if !strings.Contains(cfg.URLTemplate, "{year}") {
		return nil, fmt.Errorf("url template must contain {year}")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if selector == nil {
		selector = DefaultSelector()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{fetcher: fetcher, selector: selector, cfg: cfg, clock: clock, logger: logger}, nil
}

// URL renders the page address for year.
func (e *Extractor) URL(year int) string {
	return strings.ReplaceAll(e.cfg.URLTemplate, "{year}", strconv.Itoa(year))
}

// ExtractYear returns the header and rows of the incident table for year.
// With SkipMissing set, a year without a table yields an empty batch.
func (e *Extractor) ExtractYear(ctx context.Context, year int) (incident.Batch, error) {
	start := time.Now()
	url := e.URL(year)
	doc, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		if errors.Is(err, collyfetcher.ErrNotFound) {
			return e.missing(&incident.TableNotFoundError{Year: year, URL: url})
		}
		return incident.Batch{}, fmt.Errorf("community page %d: %w", year, err)
	}
	batch, err := e.Parse(doc.Body, year)
	if err != nil {
		var notFound *incident.TableNotFoundError
		if errors.As(err, &notFound) {
			notFound.URL = url
			return e.missing(notFound)
		}
		return incident.Batch{}, err
	}
	metrics.ObservePage(string(incident.SourceCommunityTable))
	metrics.ObserveRows(string(incident.SourceCommunityTable), len(batch.Rows))
	metrics.ObserveYearFetch(string(incident.SourceCommunityTable), time.Since(start))
	e.logger.Debug("community table extracted",
		zap.Int("year", year),
		zap.Int("columns", len(batch.Header)),
		zap.Int("rows", len(batch.Rows)),
	)
	return batch, nil
}

func (e *Extractor) missing(err *incident.TableNotFoundError) (incident.Batch, error) {
	if !e.cfg.SkipMissing {
		return incident.Batch{}, err
	}
	e.logger.Warn("skipping year without incident table", zap.Int("year", err.Year), zap.String("url", err.URL))
	return incident.Batch{Year: err.Year, Source: incident.SourceCommunityTable, FetchedAt: e.clock.Now()}, nil
}

// Parse extracts the incident table from an HTML body.
func (e *Extractor) Parse(body []byte, year int) (incident.Batch, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return incident.Batch{}, fmt.Errorf("parse community page %d: %w", year, err)
	}
	header, table, ok := e.selector.Select(doc)
	if !ok {
		return incident.Batch{}, &incident.TableNotFoundError{Year: year}
	}

	header = append(append([]string(nil), header...), YearColumn)
	yearText := strconv.Itoa(year)
	var rows []incident.RawRow
	tableRows(table).Slice(1, goquery.ToEnd).Each(func(_ int, tr *goquery.Selection) {
		var texts []string
		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			texts = append(texts, cleanText(cell.Text()))
		})
		if len(texts) == 0 {
			return
		}
		if len(texts) == notesPaddedWidth {
			texts = append(texts, "")
		}
		texts = append(texts, yearText)
		rows = append(rows, newRow(header, texts, year))
	})

	return incident.Batch{
		Header:    header,
		Rows:      rows,
		Year:      year,
		Source:    incident.SourceCommunityTable,
		FetchedAt: e.clock.Now(),
	}, nil
}

// newRow aligns texts to header. The year tag always lands in the year
// column, even when the row is wider or narrower than the header.
func newRow(header, texts []string, year int) incident.RawRow {
	body := texts[:len(texts)-1]
	row := incident.NewRawRow(header[:len(header)-1], body, year, incident.SourceCommunityTable)
	row.Cells = append(row.Cells, incident.Cell{Column: YearColumn, Text: texts[len(texts)-1]})
	return row
}
