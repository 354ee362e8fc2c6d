package browser

import (
	"context"
	"time"
)

// Wait strategies for asynchronously rendered content
const (
	WaitFixed = "fixed"
	WaitPoll  = "poll"
)

// Waiter hides how the engine waits for a page to settle after a scroll or click
type Waiter struct {
	Strategy     string
	Settle       time.Duration
	PollInterval time.Duration
}

// NewWaiter returns a waiter for the named strategy. Unknown names fall back to fixed delays.
func NewWaiter(strategy string, settle time.Duration) Waiter {
	if strategy != WaitPoll {
		strategy = WaitFixed
	}
	interval := settle / 4
	if interval < 50*time.Millisecond {
		interval = 50 * time.Millisecond
	}
	return Waiter{Strategy: strategy, Settle: settle, PollInterval: interval}
}

// WaitForStable waits until the page has settled.
// The fixed strategy sleeps the settle delay and ignores probe.
// The poll strategy calls probe until two consecutive readings agree or timeout elapses.
// Hitting the timeout is not an error; callers read whatever has rendered.
func (w Waiter) WaitForStable(ctx context.Context, probe func(ctx context.Context) (string, error), timeout time.Duration) error {
	if w.Strategy != WaitPoll || probe == nil {
		return sleep(ctx, w.Settle)
	}

	deadline := time.Now().Add(timeout)
	previous, err := probe(ctx)
	if err != nil {
		return err
	}
	for time.Now().Before(deadline) {
		if err := sleep(ctx, w.PollInterval); err != nil {
			return err
		}
		current, err := probe(ctx)
		if err != nil {
			return err
		}
		if current == previous {
			return nil
		}
		previous = current
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
