package browser

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Slots bounds the number of tabs open across every actor's browser
type Slots struct {
	semaphore chan struct{}
	inUse     atomic.Int64
}

// NewSlots creates a pool of max concurrent page slots
func NewSlots(max int) *Slots {
	if max <= 0 {
		max = 1
	}
	return &Slots{semaphore: make(chan struct{}, max)}
}

// Acquire blocks until a slot is free or ctx ends
func (s *Slots) Acquire(ctx context.Context) error {
	select {
	case s.semaphore <- struct{}{}:
		s.inUse.Add(1)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for a page slot: %w", ctx.Err())
	}
}

// Release frees a slot taken by Acquire
func (s *Slots) Release() {
	s.inUse.Add(-1)
	<-s.semaphore
}

// InUse returns the number of pages currently open
func (s *Slots) InUse() int {
	return int(s.inUse.Load())
}

// Capacity returns the pool size
func (s *Slots) Capacity() int {
	return cap(s.semaphore)
}
