package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/calfire-history/internal/govfeed"
)

func TestNewLauncherValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewLauncher(Config{}, nil); err == nil {
		t.Fatal("expected error for missing root selector")
	}
	if _, err := NewLauncher(Config{RootSelector: "#t", RenderTimeout: -time.Second}, nil); err == nil {
		t.Fatal("expected error for negative timeout")
	}
	launcher, err := NewLauncher(Config{RootSelector: "#t"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if launcher.logger == nil {
		t.Fatal("expected nop logger default")
	}
}

func TestSessionTimeoutDefaults(t *testing.T) {
	t.Parallel()

	s := &Session{}
	if got := s.renderTimeout(); got != 45*time.Second {
		t.Fatalf("expected default render timeout, got %v", got)
	}
	if got := s.opTimeout(); got != 10*time.Second {
		t.Fatalf("expected default op timeout, got %v", got)
	}
	s.cfg.RenderTimeout = time.Second
	s.cfg.OpTimeout = 2 * time.Second
	if got := s.renderTimeout(); got != time.Second {
		t.Fatalf("expected override, got %v", got)
	}
	if got := s.opTimeout(); got != 2*time.Second {
		t.Fatalf("expected override, got %v", got)
	}
}

func TestForwardCancel(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()
	stop := forwardCancel(parent, cancelChild)
	defer stop()

	cancelParent()
	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child context was not cancelled")
	}
}

func TestCloseNilSession(t *testing.T) {
	t.Parallel()

	var s *Session
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

const incidentPage = `<!doctype html><html><body>
<div id="incidentListTable"><div>
  <nav><ul><li><a href="#" onclick="return false">1</a></li></ul></nav>
  <div><div>
    <div>header</div>
    <div><div>Creek Fire</div><div>2020-09-04</div><div>Fresno</div><div>379,895</div><div>100%</div></div>
  </div></div>
</div></div>
</body></html>`

func chromeOrSkip(t *testing.T) {
	t.Helper()
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("chrome not installed")
}

func TestSessionReadsRenderedTable(t *testing.T) {
	chromeOrSkip(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, incidentPage)
	}))
	defer srv.Close()

	launcher, err := NewLauncher(Config{RootSelector: "#incidentListTable", RenderTimeout: 20 * time.Second}, zap.NewNop())
	if err != nil {
		t.Fatalf("new launcher: %v", err)
	}
	ctx := context.Background()
	session, err := launcher.Launch(ctx)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	defer session.Close()

	if err := session.Navigate(ctx, srv.URL); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	found, err := session.Click(ctx, `//*[@id="incidentListTable"]/div/nav/ul/li[1]/a`)
	if err != nil || !found {
		t.Fatalf("click page 1: found=%v err=%v", found, err)
	}
	found, err = session.Click(ctx, `//*[@id="incidentListTable"]/div/nav/ul/li[2]/a`)
	if err != nil || found {
		t.Fatalf("expected page 2 to be absent: found=%v err=%v", found, err)
	}
	text, found, err := session.Text(ctx, `//*[@id="incidentListTable"]/div/div/div[2]/div[1]`)
	if err != nil || !found {
		t.Fatalf("read cell: found=%v err=%v", found, err)
	}
	if text != "Creek Fire" {
		t.Fatalf("expected Creek Fire, got %q", text)
	}
}

func TestNavigateWithoutRootIsNotRendered(t *testing.T) {
	chromeOrSkip(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>maintenance</body></html>")
	}))
	defer srv.Close()

	launcher, err := NewLauncher(Config{RootSelector: "#incidentListTable", RenderTimeout: 2 * time.Second}, nil)
	if err != nil {
		t.Fatalf("new launcher: %v", err)
	}
	session, err := launcher.Launch(context.Background())
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	defer session.Close()

	err = session.Navigate(context.Background(), srv.URL)
	if !errors.Is(err, govfeed.ErrNotRendered) {
		t.Fatalf("expected ErrNotRendered, got %v", err)
	}
}
