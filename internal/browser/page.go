package browser

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"meetsync/internal/models"
)

// Page is the slice of an open tab that extraction code needs.
// Fakes in tests implement it to simulate a rendered document.
type Page interface {
	// Evaluate runs script in the page and decodes its JSON result into out.
	// Promises are awaited.
	Evaluate(ctx context.Context, script string, out any) error
	// Cookies returns the browser's cookies for the given URLs
	Cookies(ctx context.Context, urls []string) ([]models.Cookie, error)
	// URL returns the current document URL
	URL(ctx context.Context) (string, error)
}

// PageRunner opens an authenticated page and hands it to fn
type PageRunner interface {
	WithPage(ctx context.Context, cookies []models.Cookie, url string, fn func(ctx context.Context, p Page) error) error
}

// ChromePage implements Page on a chromedp tab context
type ChromePage struct{}

func (ChromePage) Evaluate(ctx context.Context, script string, out any) error {
	return chromedp.Run(ctx, chromedp.Evaluate(script, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
}

func (ChromePage) Cookies(ctx context.Context, urls []string) ([]models.Cookie, error) {
	var jar []models.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().WithUrls(urls).Do(ctx)
		if err != nil {
			return err
		}
		jar = make([]models.Cookie, 0, len(cookies))
		for _, c := range cookies {
			jar = append(jar, models.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Secure:   c.Secure,
				HTTPOnly: c.HTTPOnly,
				Expires:  c.Expires,
				SameSite: string(c.SameSite),
			})
		}
		return nil
	}))
	return jar, err
}

func (ChromePage) URL(ctx context.Context) (string, error) {
	var location string
	err := chromedp.Run(ctx, chromedp.Location(&location))
	return location, err
}

// setCookies installs each cookie on its own so one rejected cookie does not block the rest.
// Returns how many were applied.
func setCookies(ctx context.Context, cookies []models.Cookie) int {
	applied := 0
	for _, c := range cookies {
		params := network.SetCookie(c.Name, c.Value).
			WithDomain(c.Domain).
			WithPath(c.Path).
			WithSecure(c.Secure).
			WithHTTPOnly(c.HTTPOnly)
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			params = params.WithExpires(&expires)
		}
		if sameSite, ok := sameSiteValue(c.SameSite); ok {
			params = params.WithSameSite(sameSite)
		}
		if err := params.Do(ctx); err != nil {
			continue
		}
		applied++
	}
	return applied
}

func sameSiteValue(raw string) (network.CookieSameSite, bool) {
	switch strings.ToLower(raw) {
	case "strict":
		return network.CookieSameSiteStrict, true
	case "lax":
		return network.CookieSameSiteLax, true
	case "none", "no_restriction":
		return network.CookieSameSiteNone, true
	}
	return "", false
}
