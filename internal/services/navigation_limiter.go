package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// NavigationLimiter paces page loads against the target site.
// Tier 1 caps the whole process, tier 2 caps each user.
type NavigationLimiter struct {
	global  *rate.Limiter
	perUser sync.Map // map[string]*rate.Limiter
	userRPS float64
}

// NewNavigationLimiter creates a limiter. perUserRate is navigations per second for one user;
// the global tier allows that rate for every concurrent page.
func NewNavigationLimiter(perUserRate float64, concurrentPages int) *NavigationLimiter {
	if perUserRate <= 0 {
		perUserRate = 1
	}
	if concurrentPages <= 0 {
		concurrentPages = 1
	}
	globalRate := perUserRate * float64(concurrentPages)
	return &NavigationLimiter{
		global:  rate.NewLimiter(rate.Limit(globalRate), concurrentPages),
		userRPS: perUserRate,
	}
}

// Wait blocks until both tiers admit one navigation for userID
func (l *NavigationLimiter) Wait(ctx context.Context, userID string) error {
	if err := l.global.Wait(ctx); err != nil {
		return fmt.Errorf("global navigation limit: %w", err)
	}
	if err := l.userLimiter(userID).Wait(ctx); err != nil {
		return fmt.Errorf("navigation limit for user %s: %w", userID, err)
	}
	return nil
}

func (l *NavigationLimiter) userLimiter(userID string) *rate.Limiter {
	if limiter, ok := l.perUser.Load(userID); ok {
		return limiter.(*rate.Limiter)
	}
	newLimiter := rate.NewLimiter(rate.Limit(l.userRPS), 2)
	actual, _ := l.perUser.LoadOrStore(userID, newLimiter)
	return actual.(*rate.Limiter)
}
