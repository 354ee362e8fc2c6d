package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"meetsync/internal/models"
)

// Options configures one actor's browser
type Options struct {
	UserID            string
	ChromePath        string
	Headless          bool
	NavigationTimeout time.Duration
	ProbeTimeout      time.Duration
	// IsLoginURL classifies the URL a navigation ended on
	IsLoginURL func(url string) bool
	// Slots is shared by every engine in the process
	Slots *Slots
	// OnLaunch is called after each successful browser start
	OnLaunch func()
}

// Engine owns at most one live headless browser for a single actor
type Engine struct {
	opts Options

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	lastUsed      time.Time
	active        int
	launches      int
}

// NewEngine creates an engine. The browser is launched lazily on first use.
func NewEngine(opts Options) *Engine {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 3 * time.Second
	}
	if opts.Slots == nil {
		opts.Slots = NewSlots(1)
	}
	return &Engine{opts: opts, lastUsed: time.Now()}
}

// GetBrowser returns the live browser context, relaunching when the probe fails.
func (e *Engine) GetBrowser(ctx context.Context) (context.Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browserCtx != nil {
		err := e.probeLocked(ctx)
		if err == nil {
			return e.browserCtx, nil
		}
		log.Printf("⚠️  [BROWSER] Probe failed for user %s, relaunching: %v", e.opts.UserID, err)
		e.closeLocked()
	}

	if err := e.launchLocked(); err != nil {
		return nil, err
	}
	return e.browserCtx, nil
}

func (e *Engine) launchLocked() error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("headless", e.opts.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.WindowSize(1440, 900),
	)
	if e.opts.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(e.opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the process; it must not carry a deadline
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return models.NewError(models.KindTransient, "failed to launch browser", err)
	}

	e.allocCancel = allocCancel
	e.browserCtx = browserCtx
	e.browserCancel = browserCancel
	e.launches++
	log.Printf("🌐 [BROWSER] Launched browser for user %s (launch #%d)", e.opts.UserID, e.launches)

	if e.opts.OnLaunch != nil {
		e.opts.OnLaunch()
	}
	return nil
}

// Probe checks that the browser answers a CDP call
func (e *Engine) Probe(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.probeLocked(ctx)
}

func (e *Engine) probeLocked(ctx context.Context) error {
	if e.browserCtx == nil {
		return errors.New("browser not running")
	}
	if err := e.browserCtx.Err(); err != nil {
		return fmt.Errorf("browser context closed: %w", err)
	}

	probeCtx, cancel := context.WithTimeout(e.browserCtx, e.opts.ProbeTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(probeCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, _, _, _, err := cdpbrowser.GetVersion().Do(ctx)
		return err
	}))
}

// WithPage opens a tab with the given cookies, navigates to url and runs fn.
// A navigation that lands on a sign-in page fails with SessionExpired before fn runs.
func (e *Engine) WithPage(ctx context.Context, cookies []models.Cookie, url string, fn func(ctx context.Context, p Page) error) error {
	if err := e.opts.Slots.Acquire(ctx); err != nil {
		return models.NewError(models.KindTransient, "no page slot available", err)
	}
	defer e.opts.Slots.Release()

	e.begin()
	defer e.end()

	browserCtx, err := e.GetBrowser(ctx)
	if err != nil {
		return err
	}

	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer closeTab()
	if err := chromedp.Run(tabCtx); err != nil {
		return models.NewError(models.KindTransient, "failed to open tab", err)
	}
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	var applied int
	if err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			applied = setCookies(ctx, cookies)
			return nil
		}),
	); err != nil {
		return models.NewError(models.KindTransient, "failed to prepare tab", err)
	}
	if skipped := len(cookies) - applied; skipped > 0 {
		log.Printf("⚠️  [BROWSER] Skipped %d of %d cookies for user %s", skipped, len(cookies), e.opts.UserID)
	}

	navCtx, cancelNav := context.WithTimeout(tabCtx, e.opts.NavigationTimeout)
	defer cancelNav()

	var finalURL string
	if err := chromedp.Run(navCtx, chromedp.Navigate(url), chromedp.Location(&finalURL)); err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return models.NewError(models.KindTransient, fmt.Sprintf("navigation timed out after %s", e.opts.NavigationTimeout), err)
		}
		return models.NewError(models.KindTransient, "navigation failed", err)
	}

	if err := e.checkLanding(finalURL); err != nil {
		return err
	}

	return fn(tabCtx, ChromePage{})
}

// checkLanding fails with SessionExpired when a navigation ended on the sign-in page
func (e *Engine) checkLanding(finalURL string) error {
	if e.opts.IsLoginURL == nil || !e.opts.IsLoginURL(finalURL) {
		return nil
	}
	log.Printf("🔒 [BROWSER] User %s redirected to sign-in page", e.opts.UserID)
	return models.ErrSessionExpired
}

func (e *Engine) begin() {
	e.mu.Lock()
	e.active++
	e.lastUsed = time.Now()
	e.mu.Unlock()
}

func (e *Engine) end() {
	e.mu.Lock()
	e.active--
	e.lastUsed = time.Now()
	e.mu.Unlock()
}

// IdleFor returns how long the browser has been running without an open page.
// It is zero while a page is open or when no browser is running.
func (e *Engine) IdleFor() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browserCtx == nil || e.active > 0 {
		return 0
	}
	return time.Since(e.lastUsed)
}

// Running reports whether a browser process is held
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.browserCtx != nil
}

// Launches returns how many times the browser has been started
func (e *Engine) Launches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.launches
}

// Close shuts the browser down. The next operation relaunches it.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
}

func (e *Engine) closeLocked() {
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	e.browserCtx = nil
	e.browserCancel = nil
	e.allocCancel = nil
}
