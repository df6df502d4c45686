// Package headless drives headless Chrome through chromedp for pages that
// only render their tables with JavaScript.
package headless

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/calfire-history/internal/govfeed"
)

// Config controls how browsers are launched and how long they may take.
type Config struct {
	// ExecPath points at the Chrome binary. Empty lets chromedp search PATH.
	ExecPath  string
	UserAgent string
	// ShowBrowser runs Chrome with a window, which helps when debugging selectors.
	ShowBrowser bool
	// RootSelector is the CSS selector that must be ready before a page counts as rendered.
	RootSelector  string
	RenderTimeout time.Duration
	// OpTimeout bounds each individual lookup or click.
	OpTimeout time.Duration
}

// Launcher implements govfeed.Launcher with one Chrome process per session.
type Launcher struct {
	cfg    Config
	logger *zap.Logger
}

// NewLauncher validates cfg and returns a Launcher.
func NewLauncher(cfg Config, logger *zap.Logger) (*Launcher, error) {
	if cfg.RootSelector == "" {
		return nil, fmt.Errorf("root selector is required")
	}
	if cfg.RenderTimeout < 0 || cfg.OpTimeout < 0 {
		return nil, fmt.Errorf("timeouts must be >= 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{cfg: cfg, logger: logger}, nil
}

// Launch starts Chrome and opens a tab. The returned session must be closed.
func (l *Launcher) Launch(ctx context.Context) (govfeed.Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !l.cfg.ShowBrowser),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	warmCtx, warmCancel := context.WithTimeout(browserCtx, l.renderTimeout())
	stop := forwardCancel(ctx, warmCancel)
	err := chromedp.Run(warmCtx)
	stop()
	warmCancel()
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	l.logger.Debug("browser session started")
	return &Session{
		cfg:           l.cfg,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		logger:        l.logger,
	}, nil
}

func (l *Launcher) renderTimeout() time.Duration {
	if l.cfg.RenderTimeout > 0 {
		return l.cfg.RenderTimeout
	}
	return 45 * time.Second
}

// Session is a single Chrome tab.
type Session struct {
	cfg           Config
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	logger        *zap.Logger
	closed        bool
}

// Navigate loads url and waits for the root selector to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	opCtx, done := s.opContext(ctx, s.renderTimeout())
	defer done()

	tasks := chromedp.Tasks{network.Enable()}
	if s.cfg.UserAgent != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(s.cfg.UserAgent))
	}
	tasks = append(tasks,
		chromedp.Navigate(url),
		chromedp.WaitReady(s.cfg.RootSelector, chromedp.ByQuery),
	)
	if err := chromedp.Run(opCtx, tasks); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: %s after %s", govfeed.ErrNotRendered, url, s.renderTimeout())
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Click presses the first element matching xpath, if any.
func (s *Session) Click(ctx context.Context, xpath string) (bool, error) {
	opCtx, done := s.opContext(ctx, s.opTimeout())
	defer done()

	node, err := firstNode(opCtx, xpath)
	if err != nil || node == nil {
		return false, err
	}
	if err := chromedp.Run(opCtx, chromedp.MouseClickNode(node)); err != nil {
		return false, fmt.Errorf("click %s: %w", xpath, err)
	}
	return true, nil
}

// Text returns the visible text of the first element matching xpath, if any.
func (s *Session) Text(ctx context.Context, xpath string) (string, bool, error) {
	opCtx, done := s.opContext(ctx, s.opTimeout())
	defer done()

	node, err := firstNode(opCtx, xpath)
	if err != nil || node == nil {
		return "", false, err
	}
	var text string
	if err := chromedp.Run(opCtx, chromedp.Text([]cdp.NodeID{node.NodeID}, &text, chromedp.ByNodeID)); err != nil {
		return "", false, fmt.Errorf("read text %s: %w", xpath, err)
	}
	return text, true, nil
}

// Close shuts the browser down and kills the Chrome process. It is safe to call twice.
func (s *Session) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	err := chromedp.Cancel(s.browserCtx)
	s.browserCancel()
	s.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close chrome: %w", err)
	}
	s.logger.Debug("browser session closed")
	return nil
}

// firstNode returns nil without error when nothing matches. AtLeast(0) stops
// chromedp from polling until the node appears; the caller owns retries.
func firstNode(ctx context.Context, xpath string) (*cdp.Node, error) {
	var nodes []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(xpath, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query %s: %w", xpath, err)
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

func (s *Session) opContext(parent context.Context, timeout time.Duration) (context.Context, func()) {
	opCtx, cancel := context.WithTimeout(s.browserCtx, timeout)
	stop := forwardCancel(parent, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func (s *Session) renderTimeout() time.Duration {
	if s.cfg.RenderTimeout > 0 {
		return s.cfg.RenderTimeout
	}
	return 45 * time.Second
}

func (s *Session) opTimeout() time.Duration {
	if s.cfg.OpTimeout > 0 {
		return s.cfg.OpTimeout
	}
	return 10 * time.Second
}

// forwardCancel cancels a chromedp-derived context when the caller's context ends.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
