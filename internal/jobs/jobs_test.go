package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingReaper struct {
	mu      sync.Mutex
	calls   int
	maxIdle time.Duration
}

func (r *countingReaper) ReapIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.maxIdle = maxIdle
	return 1
}

func (r *countingReaper) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestNewBrowserReaperJob(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		wantErr    bool
	}{
		{"every five minutes", "*/5 * * * *", false},
		{"hourly", "0 * * * *", false},
		{"seconds field rejected", "*/5 * * * * *", true},
		{"garbage", "soon", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBrowserReaperJob(&countingReaper{}, time.Minute, tt.expression)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewBrowserReaperJob(%q) error = %v, wantErr %v", tt.expression, err, tt.wantErr)
			}
		})
	}
}

func TestBrowserReaperNextRun(t *testing.T) {
	job, err := NewBrowserReaperJob(&countingReaper{}, time.Minute, "*/5 * * * *")
	if err != nil {
		t.Fatalf("NewBrowserReaperJob failed: %v", err)
	}
	job.now = func() time.Time { return time.Date(2026, 3, 1, 10, 2, 30, 0, time.UTC) }

	want := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	if got := job.GetNextRunTime(); !got.Equal(want) {
		t.Errorf("Expected next run %v, got %v", want, got)
	}
}

func TestBrowserReaperRun(t *testing.T) {
	reaper := &countingReaper{}
	job, _ := NewBrowserReaperJob(reaper, 15*time.Minute, "*/5 * * * *")

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reaper.count() != 1 || reaper.maxIdle != 15*time.Minute {
		t.Errorf("Expected one reap with 15m idle, got %d calls with %v", reaper.count(), reaper.maxIdle)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := job.Run(ctx); err == nil {
		t.Error("Expected cancelled context to abort the run")
	}
	if reaper.count() != 1 {
		t.Errorf("Cancelled run must not reap, got %d calls", reaper.count())
	}
}

type soonJob struct {
	mu   sync.Mutex
	runs int
	err  error
}

func (j *soonJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs++
	return j.err
}

func (j *soonJob) GetNextRunTime() time.Time { return time.Now().Add(10 * time.Millisecond) }

func (j *soonJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

func TestJobSchedulerRunsAndReschedules(t *testing.T) {
	s := NewJobScheduler(time.Second)
	job := &soonJob{}
	s.Register("soon", job)
	s.Start()

	deadline := time.Now().Add(2 * time.Second)
	for job.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if job.count() < 2 {
		t.Fatalf("Expected the job to run at least twice, ran %d times", job.count())
	}

	after := job.count()
	time.Sleep(50 * time.Millisecond)
	if job.count() != after {
		t.Error("Job kept running after Stop")
	}
}

func TestJobSchedulerRunNowRecordsStatus(t *testing.T) {
	s := NewJobScheduler(time.Second)
	job := &soonJob{err: errors.New("boom")}
	s.Register("failing", job)

	if err := s.RunNow("failing"); err == nil {
		t.Error("Expected the job error to be returned")
	}
	if err := s.RunNow("missing"); err == nil {
		t.Error("Expected an error for an unknown job")
	}

	st := s.GetStatus()["failing"]
	if st.Runs != 1 || st.LastError != "boom" {
		t.Errorf("Unexpected status: %+v", st)
	}
}
