// Package collyfetcher downloads static HTML documents using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/calfire-history/internal/policy/backoff"
	"github.com/JakeFAU/calfire-history/internal/policy/ratelimit"
)

// ErrNotFound is returned for 404 and 410 responses, which are never retried.
var ErrNotFound = errors.New("document not found")

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Document is a downloaded page.
type Document struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

// Fetcher performs rate-limited GETs with bounded retries.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	retry         *backoff.Policy
	limiter       *ratelimit.Limiter
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. retry and limiter may be nil.
func New(cfg Config, retry *backoff.Policy, limiter *ratelimit.Limiter, logger *zap.Logger) *Fetcher {
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	if retry == nil {
		retry = backoff.New(backoff.Config{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		retry:         retry,
		limiter:       limiter,
		logger:        logger,
	}
}

// Fetch downloads url, retrying transient failures.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Document, error) {
	var lastErr error
	for attempt := 1; attempt <= f.retry.Attempts(); attempt++ {
		if err := f.limiter.Wait(ctx, url); err != nil {
			return Document{}, err
		}
		doc, err := f.fetchOnce(ctx, url)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !retryable(err) || !f.retry.ShouldRetry(err, attempt) {
			break
		}
		f.logger.Warn("fetch failed, retrying", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
		if err := f.retry.Wait(ctx, attempt-1); err != nil {
			return Document{}, err
		}
	}
	return Document{}, lastErr
}

func retryable(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	return true
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (Document, error) {
	var (
		result   Document
		fetchErr error
	)
	collector := f.buildCollector()
	configureCollectorHooks(collector, time.Now(), &result, &fetchErr)
	if err := runCollector(ctx, collector, url, &fetchErr); err != nil {
		return Document{}, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector() *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	return collector
}

func configureCollectorHooks(hooks collectorHooks, start time.Time, result *Document, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = Document{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			url := ""
			if r.Request != nil && r.Request.URL != nil {
				url = r.Request.URL.String()
			}
			statusErr := &StatusError{URL: url, StatusCode: r.StatusCode}
			if r.StatusCode == http.StatusNotFound || r.StatusCode == http.StatusGone {
				*fetchErr = fmt.Errorf("%w: %w", ErrNotFound, statusErr)
				return
			}
			*fetchErr = statusErr
			return
		}
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
