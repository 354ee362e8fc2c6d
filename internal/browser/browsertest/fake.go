// Package browsertest provides in-memory pages for exercising extraction code without Chrome.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"meetsync/internal/browser"
	"meetsync/internal/models"
)

// Handler answers one named script. Its result is round-tripped through JSON like a real evaluation.
type Handler func(args []json.RawMessage) (any, error)

// Page is a scripted browser.Page
type Page struct {
	mu       sync.Mutex
	handlers map[string]Handler
	Location string
	Jar      []models.Cookie
	Calls    []string
}

// NewPage creates a page at location
func NewPage(location string) *Page {
	return &Page{handlers: make(map[string]Handler), Location: location}
}

// Handle registers the handler for a script name
func (p *Page) Handle(name string, h Handler) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[name] = h
	return p
}

func (p *Page) Evaluate(ctx context.Context, script string, out any) error {
	name := browser.ScriptName(script)

	p.mu.Lock()
	p.Calls = append(p.Calls, name)
	h, ok := p.handlers[name]
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("no handler for script %q", name)
	}
	args, err := browser.ScriptArgs(script)
	if err != nil {
		return err
	}
	value, err := h(args)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (p *Page) Cookies(ctx context.Context, urls []string) ([]models.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Cookie(nil), p.Jar...), nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	return p.Location, nil
}

// CallCount returns how many times a script was evaluated
func (p *Page) CallCount(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.Calls {
		if c == name {
			n++
		}
	}
	return n
}

// Runner is a browser.PageRunner that serves a fixed page.
// When LoginRedirect is set every navigation fails with SessionExpired before fn runs.
type Runner struct {
	Page          *Page
	LoginRedirect bool
	Err           error

	mu       sync.Mutex
	Visited  []string
	Received [][]models.Cookie
}

func (r *Runner) WithPage(ctx context.Context, cookies []models.Cookie, url string, fn func(ctx context.Context, p browser.Page) error) error {
	r.mu.Lock()
	r.Visited = append(r.Visited, url)
	r.Received = append(r.Received, cookies)
	r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	if r.LoginRedirect {
		return models.ErrSessionExpired
	}
	return fn(ctx, r.Page)
}

// ArgString decodes args[i] as a string
func ArgString(args []json.RawMessage, i int) string {
	var s string
	if i < len(args) {
		_ = json.Unmarshal(args[i], &s)
	}
	return s
}

// ArgInt decodes args[i] as an int
func ArgInt(args []json.RawMessage, i int) int {
	var n int
	if i < len(args) {
		_ = json.Unmarshal(args[i], &n)
	}
	return n
}
