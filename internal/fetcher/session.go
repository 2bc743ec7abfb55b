package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"newsmatch/internal/config"
)

// Renderer loads a page in a browser and returns the rendered markup.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (string, error)
	// Recreate replaces a broken browser with a fresh one.
	Recreate(ctx context.Context) error
}

const hideWebdriverScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Session owns one headless Chrome process. It is not safe for concurrent
// renders; a worker uses it for one navigation at a time.
type Session struct {
	cfg    config.RenderingConfig
	logger *slog.Logger

	mu            sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	pid           int
	generation    int
	closed        bool
}

// NewSession launches a browser and returns a session bound to it.
func NewSession(ctx context.Context, cfg config.RenderingConfig, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageLoadTimeout.Duration <= 0 {
		cfg.PageLoadTimeout = config.DurationFrom(15 * time.Second)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 5 * 1024 * 1024
	}
	s := &Session{cfg: cfg, logger: logger}
	if err := s.launchLocked(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Generation counts how many browsers this session has launched.
func (s *Session) Generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) allocatorOptions() []chromedp.ExecAllocatorOption {
	ua := strings.TrimSpace(s.cfg.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", !s.cfg.DisableHeadless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.UserAgent(ua),
		processGroupOption(),
	}
	if s.cfg.BlockImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	return opts
}

func (s *Session) launchLocked(ctx context.Context) error {
	// The browser outlives any single caller context.
	base := context.WithoutCancel(ctx)
	allocCtx, allocCancel := chromedp.NewExecAllocator(base, s.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts Chrome under browserCtx, and cancelling any context
	// it runs on stops the browser. Bound the launch with a timer instead.
	timeout := s.cfg.PageLoadTimeout.Duration
	timer := time.AfterFunc(timeout, browserCancel)
	stop := context.AfterFunc(ctx, browserCancel)

	err := chromedp.Run(browserCtx)
	timedOut := !timer.Stop()
	cancelled := !stop()
	if err == nil && (timedOut || cancelled) {
		err = context.Cause(browserCtx)
	}
	if err != nil {
		browserCancel()
		allocCancel()
		if timedOut {
			return fmt.Errorf("%w: launch browser after %s: %w", ErrRenderTimeout, timeout, err)
		}
		return fmt.Errorf("%w: launch browser: %w", ErrRenderCrash, err)
	}

	pid := 0
	if c := chromedp.FromContext(browserCtx); c != nil && c.Browser != nil {
		if proc := c.Browser.Process(); proc != nil {
			pid = proc.Pid
		}
	}

	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	s.allocCancel = allocCancel
	s.pid = pid
	s.generation++
	s.logger.Debug("browser session launched", "pid", pid, "generation", s.generation)
	return nil
}

func (s *Session) teardownLocked() error {
	if s.browserCancel == nil {
		return nil
	}
	s.browserCancel()
	s.allocCancel()
	err := killProcessGroup(s.pid)
	s.browserCtx, s.browserCancel, s.allocCancel, s.pid = nil, nil, nil, 0
	return err
}

// Render opens rawURL in a fresh tab, waits for the settle delay and returns
// the document's outer HTML.
func (s *Session) Render(ctx context.Context, rawURL string) (string, error) {
	s.mu.Lock()
	if s.closed || s.browserCtx == nil {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: session closed", ErrRenderCrash)
	}
	browserCtx := s.browserCtx
	s.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()
	runCtx, cancel := context.WithTimeout(tabCtx, s.cfg.PageLoadTimeout.Duration)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	actions := []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(rawURL),
	}
	if delay := s.cfg.SettleDelay.Duration; delay > 0 {
		actions = append(actions, chromedp.Sleep(delay))
	}
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	start := time.Now()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return "", classifyRenderError(ctx, runCtx, err)
	}
	if int64(len(html)) > s.cfg.MaxBodyBytes {
		html = html[:s.cfg.MaxBodyBytes]
	}
	s.logger.Debug("render complete", "url", rawURL, "latency_ms", time.Since(start).Milliseconds(), "html_bytes", len(html))
	return html, nil
}

func classifyRenderError(callerCtx, runCtx context.Context, err error) error {
	switch {
	case callerCtx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrRenderTimeout, callerCtx.Err())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrRenderTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrRenderCrash, err)
	}
}

// Recreate kills the current browser and its children and launches a new one.
func (s *Session) Recreate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: session closed", ErrRenderCrash)
	}
	if err := s.teardownLocked(); err != nil {
		s.logger.Warn("reaping browser failed", "error", err)
	}
	return s.launchLocked(ctx)
}

// Close terminates the browser and reaps its process group. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.teardownLocked()
}
