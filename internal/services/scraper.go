package services

import (
	"context"
	"time"

	"meetsync/internal/browser"
	"meetsync/internal/config"
	"meetsync/internal/extractor"
	"meetsync/internal/lister"
	"meetsync/internal/models"
)

// Scraper is everything an actor does through the browser
type Scraper interface {
	ExtractTranscript(ctx context.Context, cookies []models.Cookie, shareURL string) (*models.TranscriptResult, error)
	ListMeetings(ctx context.Context, cookies []models.Cookie) ([]models.Meeting, error)
	ListClips(ctx context.Context, cookies []models.Cookie, days int) ([]models.Clip, error)
	// CollectCookies visits the keep-alive page and returns the browser's resulting jar
	CollectCookies(ctx context.Context, cookies []models.Cookie) ([]models.Cookie, error)
	IdleFor() time.Duration
	Running() bool
	Close()
}

// ScraperFactory builds the scraper owned by one actor
type ScraperFactory func(userID string) Scraper

// BrowserSettings configures the headless browser of every actor
type BrowserSettings struct {
	ChromePath        string
	Headless          bool
	NavigationTimeout time.Duration
	WaitStrategy      string
	SettleDelay       time.Duration
}

// NewBrowserScraperFactory returns a factory whose scrapers share page slots and the navigation limiter
func NewBrowserScraperFactory(settings BrowserSettings, site func() *config.SiteProfile, slots *browser.Slots, limiter *NavigationLimiter) ScraperFactory {
	return func(userID string) Scraper {
		engine := browser.NewEngine(browser.Options{
			UserID:            userID,
			ChromePath:        settings.ChromePath,
			Headless:          settings.Headless,
			NavigationTimeout: settings.NavigationTimeout,
			IsLoginURL:        func(url string) bool { return site().IsLoginURL(url) },
			Slots:             slots,
			OnLaunch:          func() { GetMetrics().RecordBrowserLaunch() },
		})
		return newBrowserScraper(userID, engine, site, browser.NewWaiter(settings.WaitStrategy, settings.SettleDelay), limiter)
	}
}

// BrowserScraper drives one actor's browser engine
type BrowserScraper struct {
	engine    *browser.Engine
	runner    browser.PageRunner
	site      func() *config.SiteProfile
	extractor *extractor.Extractor
	lister    *lister.Lister
}

func newBrowserScraper(userID string, engine *browser.Engine, site func() *config.SiteProfile, waiter browser.Waiter, limiter *NavigationLimiter) *BrowserScraper {
	var runner browser.PageRunner = engine
	if limiter != nil {
		runner = &limitedRunner{userID: userID, next: engine, limiter: limiter}
	}
	return &BrowserScraper{
		engine:    engine,
		runner:    runner,
		site:      site,
		extractor: extractor.New(runner, site, extractor.DefaultOptions(waiter)),
		lister:    lister.New(runner, site, waiter),
	}
}

func (s *BrowserScraper) ExtractTranscript(ctx context.Context, cookies []models.Cookie, shareURL string) (*models.TranscriptResult, error) {
	return s.extractor.Extract(ctx, cookies, shareURL)
}

func (s *BrowserScraper) ListMeetings(ctx context.Context, cookies []models.Cookie) ([]models.Meeting, error) {
	return s.lister.Meetings(ctx, cookies)
}

func (s *BrowserScraper) ListClips(ctx context.Context, cookies []models.Cookie, days int) ([]models.Clip, error) {
	return s.lister.Clips(ctx, cookies, days)
}

func (s *BrowserScraper) CollectCookies(ctx context.Context, cookies []models.Cookie) ([]models.Cookie, error) {
	site := s.site()
	var jar []models.Cookie
	err := s.runner.WithPage(ctx, cookies, site.KeepAliveURL, func(ctx context.Context, page browser.Page) error {
		collected, err := page.Cookies(ctx, []string{site.BaseURL, site.KeepAliveURL})
		if err != nil {
			return models.NewError(models.KindTransient, "failed to read cookies", err)
		}
		jar = collected
		return nil
	})
	return jar, err
}

func (s *BrowserScraper) IdleFor() time.Duration { return s.engine.IdleFor() }
func (s *BrowserScraper) Running() bool          { return s.engine.Running() }
func (s *BrowserScraper) Close()                 { s.engine.Close() }

// limitedRunner waits on the navigation limiter before every page load
type limitedRunner struct {
	userID  string
	next    browser.PageRunner
	limiter *NavigationLimiter
}

func (r *limitedRunner) WithPage(ctx context.Context, cookies []models.Cookie, url string, fn func(ctx context.Context, p browser.Page) error) error {
	if err := r.limiter.Wait(ctx, r.userID); err != nil {
		return models.NewError(models.KindTransient, "navigation rate limit", err)
	}
	return r.next.WithPage(ctx, cookies, url, fn)
}
