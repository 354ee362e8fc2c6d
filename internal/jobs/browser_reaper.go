package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// IdleReaper closes browsers that have sat idle for too long
type IdleReaper interface {
	ReapIdle(maxIdle time.Duration) int
}

// BrowserReaperJob closes idle browsers on a cron schedule
type BrowserReaperJob struct {
	reaper   IdleReaper
	maxIdle  time.Duration
	schedule cron.Schedule
	now      func() time.Time
}

// NewBrowserReaperJob parses a standard 5-field cron expression
func NewBrowserReaperJob(reaper IdleReaper, maxIdle time.Duration, expression string) (*BrowserReaperJob, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid reaper schedule %q: %w", expression, err)
	}
	return &BrowserReaperJob{
		reaper:   reaper,
		maxIdle:  maxIdle,
		schedule: schedule,
		now:      time.Now,
	}, nil
}

// Run closes every browser idle for longer than maxIdle
func (j *BrowserReaperJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if closed := j.reaper.ReapIdle(j.maxIdle); closed > 0 {
		log.Printf("🧹 [REAPER] Closed %d idle browsers (idle > %v)", closed, j.maxIdle)
	}
	return nil
}

// GetNextRunTime returns the next cron tick after now
func (j *BrowserReaperJob) GetNextRunTime() time.Time {
	return j.schedule.Next(j.now())
}
