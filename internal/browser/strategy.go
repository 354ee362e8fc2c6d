package browser

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoStrategyMatched is returned when every strategy in a chain declined
var ErrNoStrategyMatched = errors.New("no strategy matched")

// Strategy is one named way of locating something on a page.
// Try returns ok=false when its markup pattern is absent so the next strategy can run.
type Strategy[T any] struct {
	Name string
	Try  func(ctx context.Context) (T, bool, error)
}

// FirstMatch runs strategies in order and returns the first hit with the name of the strategy that produced it.
func FirstMatch[T any](ctx context.Context, strategies ...Strategy[T]) (T, string, error) {
	var zero T
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		value, ok, err := s.Try(ctx)
		if err != nil {
			return zero, s.Name, fmt.Errorf("strategy %s: %w", s.Name, err)
		}
		if ok {
			return value, s.Name, nil
		}
	}
	return zero, "", ErrNoStrategyMatched
}
