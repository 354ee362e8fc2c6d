// Package lister reads the meeting and clip listing pages into typed records.
package lister

import (
	"context"
	"log"
	"strconv"
	"time"

	"meetsync/internal/browser"
	"meetsync/internal/config"
	"meetsync/internal/models"
)

// maxAncestorDepth bounds the walk from a download control to its row container
const maxAncestorDepth = 12

// Lister scrapes the listing pages of the target site
type Lister struct {
	runner        browser.PageRunner
	site          func() *config.SiteProfile
	waiter        browser.Waiter
	stableTimeout time.Duration
	now           func() time.Time
}

// New creates a lister. site is read on every call so profile reloads apply immediately.
func New(runner browser.PageRunner, site func() *config.SiteProfile, waiter browser.Waiter) *Lister {
	return &Lister{
		runner:        runner,
		site:          site,
		waiter:        waiter,
		stableTimeout: 5 * time.Second,
		now:           time.Now,
	}
}

// Meetings lists the recorded meetings on the recordings page
func (l *Lister) Meetings(ctx context.Context, cookies []models.Cookie) ([]models.Meeting, error) {
	site := l.site()
	var meetings []models.Meeting

	err := l.runner.WithPage(ctx, cookies, site.MeetingsURL, func(ctx context.Context, page browser.Page) error {
		if err := l.settle(ctx, page, site.Selectors.DownloadControl); err != nil {
			return err
		}
		var rows []MeetingRow
		if err := page.Evaluate(ctx, collectMeetingsScript(site.Selectors.DownloadControl, maxAncestorDepth), &rows); err != nil {
			return models.NewError(models.KindTransient, "failed to read meetings page", err)
		}
		meetings = ParseMeetings(rows, site, l.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📋 [LISTER] Found %d meetings", len(meetings))
	return meetings, nil
}

// Clips lists clips created within the last days days
func (l *Lister) Clips(ctx context.Context, cookies []models.Cookie, days int) ([]models.Clip, error) {
	site := l.site()
	var clips []models.Clip

	err := l.runner.WithPage(ctx, cookies, site.ClipsURL, func(ctx context.Context, page browser.Page) error {
		if err := l.settle(ctx, page, site.Selectors.ClipCard); err != nil {
			return err
		}
		var rows []ClipRow
		if err := page.Evaluate(ctx, collectClipsScript(site.Selectors.ClipCard, site.Selectors.ClipTitle), &rows); err != nil {
			return models.NewError(models.KindTransient, "failed to read clips page", err)
		}
		clips = ParseClips(rows, site, l.now(), days)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🎬 [LISTER] Found %d clips in the last %d days", len(clips), days)
	return clips, nil
}

// settle scrolls to the end so lazily loaded rows are requested, then waits for the page to settle.
// While polling, each probe scrolls again before counting.
func (l *Lister) settle(ctx context.Context, page browser.Page, selector string) error {
	l.scrollToEnd(ctx, page, selector)

	probe := func(ctx context.Context) (string, error) {
		l.scrollToEnd(ctx, page, selector)
		var n int
		if err := page.Evaluate(ctx, countItemsScript(selector), &n); err != nil {
			return "", err
		}
		return strconv.Itoa(n), nil
	}
	if err := l.waiter.WaitForStable(ctx, probe, l.stableTimeout); err != nil {
		return models.NewError(models.KindTransient, "listing page did not settle", err)
	}
	return nil
}

// scrollToEnd is best effort; a page that cannot scroll still lists what it rendered
func (l *Lister) scrollToEnd(ctx context.Context, page browser.Page, selector string) {
	var scrolled bool
	if err := page.Evaluate(ctx, scrollToEndScript(selector), &scrolled); err != nil {
		log.Printf("⚠️  [LISTER] Scroll to end failed: %v", err)
	}
}
