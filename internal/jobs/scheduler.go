package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Job is a recurring maintenance task
type Job interface {
	Run(ctx context.Context) error
	GetNextRunTime() time.Time
}

// JobScheduler runs registered jobs on their own timers until stopped
type JobScheduler struct {
	jobs    map[string]Job
	timers  map[string]*time.Timer
	status  map[string]*JobStatus
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// JobStatus is the last known state of a job
type JobStatus struct {
	Name        string    `json:"name"`
	NextRunTime time.Time `json:"nextRunTime"`
	LastRunAt   time.Time `json:"lastRunAt,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
	Runs        int       `json:"runs"`
}

// NewJobScheduler creates a scheduler whose job runs are bounded by timeout
func NewJobScheduler(timeout time.Duration) *JobScheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobScheduler{
		jobs:    make(map[string]Job),
		timers:  make(map[string]*time.Timer),
		status:  make(map[string]*JobStatus),
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds a job to the scheduler
func (s *JobScheduler) Register(name string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[name] = job
	s.status[name] = &JobStatus{Name: name}
	log.Printf("✅ [JOBS] Registered job: %s", name)
}

// Start schedules every registered job
func (s *JobScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	log.Printf("🚀 [JOBS] Starting job scheduler with %d jobs", len(s.jobs))

	for name, job := range s.jobs {
		s.scheduleLocked(name, job)
	}
}

func (s *JobScheduler) scheduleLocked(name string, job Job) {
	nextRun := job.GetNextRunTime()
	s.status[name].NextRunTime = nextRun

	s.timers[name] = time.AfterFunc(time.Until(nextRun), func() {
		s.runJob(name, job)
	})
}

// runJob executes a job and reschedules it
func (s *JobScheduler) runJob(name string, job Job) {
	s.wg.Add(1)
	defer s.wg.Done()

	err := s.execute(name, job)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		log.Printf("❌ [JOBS] Job '%s' failed: %v", name, err)
	}
	if s.running {
		s.scheduleLocked(name, job)
	}
}

func (s *JobScheduler) execute(name string, job Job) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	started := time.Now()
	err := job.Run(ctx)

	s.mu.Lock()
	st := s.status[name]
	st.LastRunAt = started
	st.Runs++
	st.LastError = ""
	if err != nil {
		st.LastError = err.Error()
	}
	s.mu.Unlock()
	return err
}

// Stop cancels pending timers and waits for running jobs
func (s *JobScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	log.Println("🛑 [JOBS] Stopping job scheduler...")
	s.running = false
	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = make(map[string]*time.Timer)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	log.Println("✅ [JOBS] Job scheduler stopped")
}

// RunNow runs a job immediately, outside its schedule
func (s *JobScheduler) RunNow(name string) error {
	s.mu.Lock()
	job, exists := s.jobs[name]
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("job %q not registered", name)
	}
	return s.execute(name, job)
}

// GetStatus returns a snapshot of every job's status
func (s *JobScheduler) GetStatus() map[string]JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]JobStatus, len(s.status))
	for name, st := range s.status {
		out[name] = *st
	}
	return out
}
