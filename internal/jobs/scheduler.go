package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Job is anything the scheduler can run on a trigger
type Job interface {
	Run(ctx context.Context) error
}

// JobScheduler runs registered jobs on cron or interval triggers
type JobScheduler struct {
	scheduler gocron.Scheduler
	jobs      map[string]gocron.Job
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	running   bool
}

// JobStatus represents the status of a job
type JobStatus struct {
	Name        string    `json:"name"`
	NextRunTime time.Time `json:"next_run_time"`
	LastRunTime time.Time `json:"last_run_time,omitempty"`
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler() (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithStopTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &JobScheduler{
		scheduler: scheduler,
		jobs:      make(map[string]gocron.Job),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// RegisterCron schedules job on a five-field cron expression evaluated in tz
func (s *JobScheduler) RegisterCron(name, expression, tz string, job Job) error {
	if tz == "" {
		tz = "UTC"
	}
	return s.register(name, gocron.CronJob(fmt.Sprintf("CRON_TZ=%s %s", tz, expression), false), job)
}

// RegisterInterval schedules job every interval, first run one interval after Start
func (s *JobScheduler) RegisterInterval(name string, interval time.Duration, job Job) error {
	return s.register(name, gocron.DurationJob(interval), job)
}

func (s *JobScheduler) register(name string, definition gocron.JobDefinition, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	j, err := s.scheduler.NewJob(
		definition,
		gocron.NewTask(func() {
			s.runJob(name, job)
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %q: %w", name, err)
	}

	s.jobs[name] = j
	log.Printf("✅ [SCHEDULER] Registered job: %s", name)
	return nil
}

// runJob executes a job with the scheduler's context
func (s *JobScheduler) runJob(name string, job Job) {
	log.Printf("▶️  [SCHEDULER] Running job: %s", name)
	startTime := time.Now()

	if err := job.Run(s.ctx); err != nil {
		log.Printf("❌ [SCHEDULER] Job '%s' failed: %v", name, err)
		return
	}

	log.Printf("✅ [SCHEDULER] Job '%s' completed in %v", name, time.Since(startTime))
}

// Start begins running all registered jobs
func (s *JobScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.scheduler.Start()
	log.Printf("🚀 [SCHEDULER] Started job scheduler with %d jobs", len(s.jobs))
}

// Stop cancels in-flight jobs and waits for them to return
func (s *JobScheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Println("🛑 [SCHEDULER] Stopping job scheduler...")
	s.running = false
	s.cancel()
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("scheduler shutdown: %w", err)
	}

	log.Println("✅ [SCHEDULER] Job scheduler stopped")
	return nil
}

// GetStatus returns the status of all jobs
func (s *JobScheduler) GetStatus() map[string]JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := make(map[string]JobStatus, len(s.jobs))
	for name, j := range s.jobs {
		next, _ := j.NextRun()
		last, _ := j.LastRun()
		status[name] = JobStatus{
			Name:        name,
			NextRunTime: next,
			LastRunTime: last,
		}
	}
	return status
}
