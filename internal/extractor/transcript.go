// Package extractor pulls caption rows out of a recording's transcript panel.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"meetsync/internal/browser"
	"meetsync/internal/config"
	"meetsync/internal/models"
	"meetsync/internal/vtt"
)

// Options tunes the scroll walk
type Options struct {
	Waiter        browser.Waiter
	PrewarmPasses int
	StepPixels    int
	MaxSteps      int
	StableTimeout time.Duration
}

// DefaultOptions returns the settings used in production
func DefaultOptions(waiter browser.Waiter) Options {
	return Options{
		Waiter:        waiter,
		PrewarmPasses: 3,
		StepPixels:    300,
		MaxSteps:      2000,
		StableTimeout: 2 * time.Second,
	}
}

// Extractor opens share links and collects their transcripts
type Extractor struct {
	runner browser.PageRunner
	site   func() *config.SiteProfile
	opts   Options
}

// New creates an extractor. site is read on every call so profile reloads apply immediately.
func New(runner browser.PageRunner, site func() *config.SiteProfile, opts Options) *Extractor {
	if opts.PrewarmPasses < 0 {
		opts.PrewarmPasses = 0
	}
	if opts.StepPixels <= 0 {
		opts.StepPixels = 300
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 2000
	}
	return &Extractor{runner: runner, site: site, opts: opts}
}

// Extract navigates to shareURL with the given cookies and returns its transcript.
// It fails with NotFound when no caption rows were found.
func (x *Extractor) Extract(ctx context.Context, cookies []models.Cookie, shareURL string) (*models.TranscriptResult, error) {
	var result *models.TranscriptResult
	err := x.runner.WithPage(ctx, cookies, shareURL, func(ctx context.Context, page browser.Page) error {
		r, err := x.FromPage(ctx, page)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type containerInfo struct {
	Found        bool `json:"found"`
	ScrollHeight int  `json:"scrollHeight"`
	ClientHeight int  `json:"clientHeight"`
}

type scrollState struct {
	ScrollTop    int `json:"scrollTop"`
	ScrollHeight int `json:"scrollHeight"`
	ClientHeight int `json:"clientHeight"`
}

// FromPage runs the extraction against an already loaded page
func (x *Extractor) FromPage(ctx context.Context, page browser.Page) (*models.TranscriptResult, error) {
	sel := x.site().Selectors

	name, err := x.openPanel(ctx, page, sel)
	switch {
	case errors.Is(err, browser.ErrNoStrategyMatched):
		log.Printf("⚠️  [EXTRACT] Transcript panel control not found, reading page as is")
	case err != nil:
		return nil, models.NewError(models.KindTransient, "failed to open transcript panel", err)
	default:
		log.Printf("📜 [EXTRACT] Transcript panel opened via %s", name)
	}
	if err := x.opts.Waiter.WaitForStable(ctx, nil, x.opts.StableTimeout); err != nil {
		return nil, models.NewError(models.KindTransient, "interrupted while waiting for panel", err)
	}

	var container containerInfo
	if err := page.Evaluate(ctx, scrollContainerScript(sel.ScrollCandidates), &container); err != nil {
		return nil, models.NewError(models.KindTransient, "failed to locate transcript list", err)
	}

	collector := NewCollector()
	method := models.MethodStatic
	if container.Found && container.ScrollHeight > container.ClientHeight {
		method = models.MethodVirtualScroll
		err = x.scrollWalk(ctx, page, sel, collector)
	} else {
		err = x.readInto(ctx, page, sel, collector)
	}
	if err != nil {
		return nil, models.NewError(models.KindTransient, "failed to read caption rows", err)
	}

	segments := collector.Segments()
	if len(segments) == 0 {
		return nil, models.NewError(models.KindNotFound, "no transcript found for this recording", nil)
	}

	log.Printf("✅ [EXTRACT] Collected %d caption rows (%s)", len(segments), method)
	return &models.TranscriptResult{
		Transcript:   vtt.Render(segments),
		SegmentCount: len(segments),
		Speakers:     vtt.Speakers(segments),
		Method:       method,
		Segments:     segments,
	}, nil
}

func (x *Extractor) openPanel(ctx context.Context, page browser.Page, sel config.Selectors) (string, error) {
	clickWith := func(script string) func(ctx context.Context) (bool, bool, error) {
		return func(ctx context.Context) (bool, bool, error) {
			var clicked bool
			if err := page.Evaluate(ctx, script, &clicked); err != nil {
				return false, false, err
			}
			return clicked, clicked, nil
		}
	}

	_, name, err := browser.FirstMatch(ctx,
		browser.Strategy[bool]{Name: "selector", Try: clickWith(panelSelectorScript(sel.TranscriptButton))},
		browser.Strategy[bool]{Name: "text-scan", Try: clickWith(panelTextScript(sel.TranscriptButtonTexts))},
	)
	return name, err
}

// scrollWalk pre-warms the virtualized list, then steps through it top to bottom
func (x *Extractor) scrollWalk(ctx context.Context, page browser.Page, sel config.Selectors, collector *Collector) error {
	probe := x.rowProbe(page, sel)

	for i := 0; i < x.opts.PrewarmPasses; i++ {
		for _, position := range []int{scrollBottom, 0} {
			if _, err := x.scrollTo(ctx, page, position); err != nil {
				return err
			}
			if err := x.opts.Waiter.WaitForStable(ctx, probe, x.opts.StableTimeout); err != nil {
				return err
			}
		}
	}

	position := 0
	lastTop := -1
	for step := 0; step < x.opts.MaxSteps; step++ {
		state, err := x.scrollTo(ctx, page, position)
		if err != nil {
			return err
		}
		if err := x.opts.Waiter.WaitForStable(ctx, probe, x.opts.StableTimeout); err != nil {
			return err
		}
		if err := x.readInto(ctx, page, sel, collector); err != nil {
			return err
		}

		atBottom := state.ScrollTop+state.ClientHeight >= state.ScrollHeight-1
		if atBottom || state.ScrollTop == lastTop {
			return nil
		}
		lastTop = state.ScrollTop
		position = state.ScrollTop + x.opts.StepPixels
	}

	log.Printf("⚠️  [EXTRACT] Stopped scrolling after %d steps", x.opts.MaxSteps)
	return nil
}

func (x *Extractor) scrollTo(ctx context.Context, page browser.Page, position int) (scrollState, error) {
	var state scrollState
	if err := page.Evaluate(ctx, scrollScript(position), &state); err != nil {
		return state, fmt.Errorf("scroll to %d: %w", position, err)
	}
	return state, nil
}

func (x *Extractor) readInto(ctx context.Context, page browser.Page, sel config.Selectors, collector *Collector) error {
	var rows []Row
	if err := page.Evaluate(ctx, readRowsScript(sel.CaptionRow, sel.CaptionTimestamp, sel.CaptionText), &rows); err != nil {
		return err
	}
	collector.Add(rows)
	return nil
}

// rowProbe summarises the rendered rows so the poll wait strategy can tell when rendering stopped
func (x *Extractor) rowProbe(page browser.Page, sel config.Selectors) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		var rows []Row
		if err := page.Evaluate(ctx, readRowsScript(sel.CaptionRow, sel.CaptionTimestamp, sel.CaptionText), &rows); err != nil {
			return "", err
		}
		if len(rows) == 0 {
			return "0", nil
		}
		return strconv.Itoa(len(rows)) + "|" + rows[0].Timestamp + "|" + rows[len(rows)-1].Timestamp, nil
	}
}
