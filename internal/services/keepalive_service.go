package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// KeepAliveOutcome is the result of one keep-alive firing
type KeepAliveOutcome string

const (
	// KeepAliveRefreshed - new cookies were stored, which re-armed the timer
	KeepAliveRefreshed KeepAliveOutcome = "refreshed"
	// KeepAliveUnchanged - the visit succeeded with the same cookies
	KeepAliveUnchanged KeepAliveOutcome = "unchanged"
	// KeepAliveExpired - the visit landed on the sign-in page
	KeepAliveExpired KeepAliveOutcome = "expired"
	// KeepAliveTransient - the visit failed for a retryable reason
	KeepAliveTransient KeepAliveOutcome = "transient"
	// KeepAliveSkipped - no active session to refresh
	KeepAliveSkipped KeepAliveOutcome = "skipped"
)

// rearm reports whether the scheduler must arm the next firing itself
func (o KeepAliveOutcome) rearm() bool {
	return o == KeepAliveUnchanged || o == KeepAliveTransient
}

// KeepAliveRunner performs the refresh visit for one user
type KeepAliveRunner interface {
	KeepAlive(ctx context.Context, userID string) KeepAliveOutcome
}

// Locker is the distributed lock used to keep instances from refreshing the same user twice
type Locker interface {
	AcquireLock(ctx context.Context, lockKey, lockValue string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey, lockValue string) (bool, error)
}

type pendingKeepAlive struct {
	job        gocron.Job
	generation uint64
	at         time.Time
}

// KeepAliveScheduler keeps at most one pending refresh per user on a shared gocron scheduler
type KeepAliveScheduler struct {
	scheduler  gocron.Scheduler
	interval   time.Duration
	timeout    time.Duration
	locker     Locker
	instanceID string

	mu         sync.Mutex
	runner     KeepAliveRunner
	jobs       map[string]pendingKeepAlive // userID -> pending job
	generation uint64
	wg         sync.WaitGroup
}

// NewKeepAliveScheduler creates the scheduler. locker may be nil for single-instance deployments.
func NewKeepAliveScheduler(interval, timeout time.Duration, locker Locker) (*KeepAliveScheduler, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &KeepAliveScheduler{
		scheduler:  scheduler,
		interval:   interval,
		timeout:    timeout,
		locker:     locker,
		instanceID: uuid.New().String(),
		jobs:       make(map[string]pendingKeepAlive),
	}, nil
}

// SetRunner sets the refresh implementation (used for deferred initialization)
func (s *KeepAliveScheduler) SetRunner(runner KeepAliveRunner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runner = runner
}

// Start starts the underlying scheduler
func (s *KeepAliveScheduler) Start() {
	log.Println("⏰ Starting keep-alive scheduler...")
	s.scheduler.Start()
	log.Printf("✅ Keep-alive scheduler started (interval %s)", s.interval)
}

// Stop stops the scheduler and waits for running refreshes
func (s *KeepAliveScheduler) Stop() error {
	log.Println("⏹️ Stopping keep-alive scheduler...")
	err := s.scheduler.Shutdown()
	s.wg.Wait()
	return err
}

// Restore arms every user that still has an active session, used after a restart
func (s *KeepAliveScheduler) Restore(ctx context.Context, activeUsers func(ctx context.Context) ([]string, error)) (int, error) {
	users, err := activeUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active sessions: %w", err)
	}

	var count int
	for _, userID := range users {
		if err := s.Arm(userID); err != nil {
			log.Printf("⚠️ [KEEPALIVE] Failed to restore keep-alive for user %s: %v", userID, err)
			continue
		}
		count++
	}
	log.Printf("✅ [KEEPALIVE] Restored %d keep-alive timers", count)
	return count, nil
}

// Arm replaces any pending refresh for userID with one firing after the interval
func (s *KeepAliveScheduler) Arm(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(userID)

	s.generation++
	generation := s.generation
	at := time.Now().Add(s.interval)

	job, err := s.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)),
		gocron.NewTask(func() {
			s.fire(userID, generation)
		}),
		gocron.WithName("keepalive:"+userID),
		gocron.WithTags(userID),
	)
	if err != nil {
		return fmt.Errorf("failed to create keep-alive job: %w", err)
	}

	s.jobs[userID] = pendingKeepAlive{job: job, generation: generation, at: at}
	return nil
}

// Cancel drops the pending refresh for userID, if any
func (s *KeepAliveScheduler) Cancel(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeLocked(userID) {
		log.Printf("🗑️ [KEEPALIVE] Cancelled keep-alive for user %s", userID)
	}
}

func (s *KeepAliveScheduler) removeLocked(userID string) bool {
	pending, exists := s.jobs[userID]
	if !exists {
		return false
	}
	delete(s.jobs, userID)
	if err := s.scheduler.RemoveJob(pending.job.ID()); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		log.Printf("⚠️ [KEEPALIVE] Failed to remove job for user %s: %v", userID, err)
	}
	return true
}

// NextRun returns when the pending refresh for userID fires
func (s *KeepAliveScheduler) NextRun(userID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, exists := s.jobs[userID]
	return pending.at, exists
}

// Pending returns the number of users with an armed refresh
func (s *KeepAliveScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// fire runs one refresh. A firing whose generation was superseded by a later Arm or Cancel does nothing.
func (s *KeepAliveScheduler) fire(userID string, generation uint64) {
	s.mu.Lock()
	pending, exists := s.jobs[userID]
	if !exists || pending.generation != generation {
		s.mu.Unlock()
		return
	}
	delete(s.jobs, userID)
	runner := s.runner
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if err := s.scheduler.RemoveJob(pending.job.ID()); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		log.Printf("⚠️ [KEEPALIVE] Failed to remove fired job for user %s: %v", userID, err)
	}

	if runner == nil {
		log.Printf("⚠️ [KEEPALIVE] No runner configured, dropping refresh for user %s", userID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if s.locker != nil {
		// One lock per user per interval window
		window := int64(s.interval / time.Second)
		if window < 1 {
			window = 1
		}
		lockKey := fmt.Sprintf("keepalive:%s:%d", userID, time.Now().Unix()/window)
		acquired, err := s.locker.AcquireLock(ctx, lockKey, s.instanceID, s.timeout)
		if err != nil {
			log.Printf("❌ [KEEPALIVE] Failed to acquire lock for user %s: %v", userID, err)
			s.rearmAfter(userID, KeepAliveTransient)
			return
		}
		if !acquired {
			log.Printf("⏭️ [KEEPALIVE] User %s already refreshed by another instance", userID)
			s.rearmAfter(userID, KeepAliveUnchanged)
			return
		}
		defer func() {
			if _, err := s.locker.ReleaseLock(context.Background(), lockKey, s.instanceID); err != nil {
				log.Printf("⚠️ [KEEPALIVE] Failed to release lock %s: %v", lockKey, err)
			}
		}()
	}

	outcome := runner.KeepAlive(ctx, userID)
	GetMetrics().RecordKeepAlive(string(outcome))
	s.rearmAfter(userID, outcome)
}

func (s *KeepAliveScheduler) rearmAfter(userID string, outcome KeepAliveOutcome) {
	if !outcome.rearm() {
		return
	}
	// Refreshed or a manual upload during the visit may already have armed a newer job
	if _, armed := s.NextRun(userID); armed {
		return
	}
	if err := s.Arm(userID); err != nil {
		log.Printf("⚠️ [KEEPALIVE] Failed to re-arm keep-alive for user %s: %v", userID, err)
	}
}
