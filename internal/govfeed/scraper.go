package govfeed

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/calfire-history/internal/incident"
	"github.com/JakeFAU/calfire-history/internal/metrics"
	"github.com/JakeFAU/calfire-history/internal/policy/backoff"
	"github.com/JakeFAU/calfire-history/internal/policy/ratelimit"
)

// Column names for the positional cells of the incident list.
const (
	ColumnName        = "name"
	ColumnStartDate   = "start_date"
	ColumnCounty      = "county"
	ColumnAcres       = "acres"
	ColumnContainment = "containment"
)

// Layout locates pager buttons and cells. PageButtonXPath takes the page
// number; CellXPath takes the row then the column, both 1-based.
type Layout struct {
	PageButtonXPath string
	CellXPath       string
	FirstDataRow    int
	Columns         []string
}

// DefaultLayout matches the incident list markup.
func DefaultLayout() Layout {
	return Layout{
		PageButtonXPath: `//*[@id="incidentListTable"]/div/nav/ul/li[%d]/a`,
		CellXPath:       `//*[@id="incidentListTable"]/div/div/div[%d]/div[%d]`,
		FirstDataRow:    2,
		Columns:         []string{ColumnName, ColumnStartDate, ColumnCounty, ColumnAcres, ColumnContainment},
	}
}

func (l Layout) pageButton(page int) string {
	return fmt.Sprintf(l.PageButtonXPath, page)
}

func (l Layout) cell(row, col int) string {
	return fmt.Sprintf(l.CellXPath, row, col)
}

// TerminationReason says why a walk or a page stopped.
type TerminationReason string

// Termination reasons.
const (
	PagesExhausted      TerminationReason = "pages_exhausted"
	RowsExhaustedOnPage TerminationReason = "rows_exhausted_on_page"
	PageLimitReached    TerminationReason = "page_limit_reached"
)

// PageReport summarizes one visited page.
type PageReport struct {
	Number int
	Rows   int
	Reason TerminationReason
}

// Result is everything one walk produced.
type Result struct {
	Header []string
	Rows   []incident.RawRow
	Pages  []PageReport
	Reason TerminationReason
}

// ScraperConfig tunes a Scraper.
type ScraperConfig struct {
	Layout Layout
	// MaxPages stops runaway pagination. Zero means no limit.
	MaxPages int
}

// Scraper runs the page/row state machine against a fresh browser session per walk.
type Scraper struct {
	launcher Launcher
	layout   Layout
	maxPages int
	retry    *backoff.Policy
	limiter  *ratelimit.Limiter
	logger   *zap.Logger
}

// NewScraper wires a Scraper. retry bounds how long a missing element is
// re-probed before it counts as absent.
func NewScraper(launcher Launcher, cfg ScraperConfig, retry *backoff.Policy, limiter *ratelimit.Limiter, logger *zap.Logger) (*Scraper, error) {
	if launcher == nil {
		return nil, fmt.Errorf("launcher is required")
	}
	layout := cfg.Layout
	if layout.PageButtonXPath == "" || layout.CellXPath == "" {
		layout = DefaultLayout()
	}
	if len(layout.Columns) == 0 {
		return nil, fmt.Errorf("layout needs at least one column")
	}
	if layout.FirstDataRow <= 0 {
		layout.FirstDataRow = 1
	}
	if retry == nil {
		retry = backoff.New(backoff.Config{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		launcher: launcher,
		layout:   layout,
		maxPages: cfg.MaxPages,
		retry:    retry,
		limiter:  limiter,
		logger:   logger,
	}, nil
}

type state int

const (
	stateActivatePage state = iota
	stateReadRow
	stateAdvancePage
	stateDone
)

type cursor struct {
	page     int
	row      int
	pageRows int
}

// Fetch loads url and walks every page. The browser is closed on every path.
func (s *Scraper) Fetch(ctx context.Context, url string) (res Result, err error) {
	if err := s.limiter.Wait(ctx, url); err != nil {
		return Result{}, err
	}
	session, err := s.launcher.Launch(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			s.logger.Warn("browser close failed", zap.String("url", url), zap.Error(cerr))
		}
	}()

	if err := session.Navigate(ctx, url); err != nil {
		return Result{}, err
	}
	res, err = s.walk(ctx, session)
	if err != nil {
		return res, fmt.Errorf("walk %s: %w", url, err)
	}
	s.logger.Info("incident list walked",
		zap.String("url", url),
		zap.Int("pages", len(res.Pages)),
		zap.Int("rows", len(res.Rows)),
		zap.String("reason", string(res.Reason)),
	)
	return res, nil
}

func (s *Scraper) walk(ctx context.Context, session Session) (Result, error) {
	res := Result{Header: append([]string(nil), s.layout.Columns...)}
	cur := cursor{page: 1}
	st := stateActivatePage

	for st != stateDone {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		switch st {
		case stateActivatePage:
			if s.maxPages > 0 && cur.page > s.maxPages {
				res.Reason = PageLimitReached
				s.logger.Warn("page limit reached", zap.Int("max_pages", s.maxPages))
				st = stateDone
				continue
			}
			found, err := s.probe(ctx, func(ctx context.Context) (bool, error) {
				return session.Click(ctx, s.layout.pageButton(cur.page))
			})
			if err != nil {
				return res, fmt.Errorf("activate page %d: %w", cur.page, err)
			}
			if !found {
				res.Reason = PagesExhausted
				st = stateDone
				continue
			}
			cur.row = s.layout.FirstDataRow
			cur.pageRows = 0
			st = stateReadRow

		case stateReadRow:
			texts, found, err := s.readRow(ctx, session, cur.row)
			if err != nil {
				return res, fmt.Errorf("read page %d row %d: %w", cur.page, cur.row, err)
			}
			if !found {
				res.Pages = append(res.Pages, PageReport{Number: cur.page, Rows: cur.pageRows, Reason: RowsExhaustedOnPage})
				metrics.ObservePage(string(incident.SourceGovernmentFeed))
				s.logger.Debug("page exhausted", zap.Int("page", cur.page), zap.Int("rows", cur.pageRows))
				st = stateAdvancePage
				continue
			}
			res.Rows = append(res.Rows, incident.NewRawRow(s.layout.Columns, texts, 0, incident.SourceGovernmentFeed))
			cur.pageRows++
			cur.row++

		case stateAdvancePage:
			cur.page++
			st = stateActivatePage
		}
	}
	return res, nil
}

// readRow probes the first cell with retries, then reads the rest directly.
// A row with any missing cell ends the page.
func (s *Scraper) readRow(ctx context.Context, session Session, row int) ([]string, bool, error) {
	texts := make([]string, len(s.layout.Columns))
	found, err := s.probe(ctx, func(ctx context.Context) (bool, error) {
		text, ok, err := session.Text(ctx, s.layout.cell(row, 1))
		texts[0] = text
		return ok, err
	})
	if err != nil || !found {
		return nil, false, err
	}
	for col := 2; col <= len(s.layout.Columns); col++ {
		text, ok, err := session.Text(ctx, s.layout.cell(row, col))
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		texts[col-1] = text
	}
	for i := range texts {
		texts[i] = strings.TrimSpace(texts[i])
	}
	return texts, true, nil
}

// probe retries lookup until it finds something or attempts run out.
// Session errors abort immediately.
func (s *Scraper) probe(ctx context.Context, lookup func(context.Context) (bool, error)) (bool, error) {
	attempts := s.retry.Attempts()
	for attempt := 1; ; attempt++ {
		found, err := lookup(ctx)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
		if attempt >= attempts {
			return false, nil
		}
		if err := s.retry.Wait(ctx, attempt-1); err != nil {
			return false, err
		}
	}
}
