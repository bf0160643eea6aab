// Package scheduler runs recurring scoring work, most importantly the daily
// end-of-day rescore of the whole universe.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named unit of scheduled work.
type Job interface {
	Name() string
	Schedule() string
	Run(ctx context.Context) error
}

// JobHistory tracks outcomes for one job.
type JobHistory struct {
	Runs      int
	Failures  int
	LastRun   time.Time
	LastError string
}

// Scheduler wraps cron with per-job retry and history tracking.
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	jobs    map[string]Job
	history map[string]*JobHistory
	mu      sync.RWMutex

	maxRetries int
	retryDelay time.Duration
	jobTimeout time.Duration
}

// New builds an empty scheduler. Schedules use standard five-field cron
// expressions.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		log:        log.With().Str("component", "scheduler").Logger(),
		jobs:       make(map[string]Job),
		history:    make(map[string]*JobHistory),
		maxRetries: 3,
		retryDelay: time.Minute,
		jobTimeout: 30 * time.Minute,
	}
}

// AddJob registers a job under its cron schedule.
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	if _, err := s.cron.AddFunc(job.Schedule(), func() { s.runJob(job) }); err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = job
	s.history[name] = &JobHistory{}

	s.log.Info().Str("job", name).Str("schedule", job.Schedule()).Msg("job registered")
	return nil
}

// runJob executes one job with retries, recording the outcome.
func (s *Scheduler) runJob(job Job) {
	name := job.Name()
	start := time.Now()

	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		err = job.Run(ctx)
		cancel()
		if err == nil {
			break
		}
		s.log.Warn().
			Str("job", name).
			Int("attempt", attempt).
			Err(err).
			Msg("job attempt failed")
		if attempt < s.maxRetries {
			time.Sleep(s.retryDelay)
		}
	}

	s.mu.Lock()
	h := s.history[name]
	h.Runs++
	h.LastRun = start
	if err != nil {
		h.Failures++
		h.LastError = err.Error()
	} else {
		h.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Str("job", name).Dur("elapsed", time.Since(start)).Err(err).Msg("job failed")
		return
	}
	s.log.Info().Str("job", name).Dur("elapsed", time.Since(start)).Msg("job completed")
}

// RunNow executes a registered job immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	s.runJob(job)
	return nil
}

// History returns a copy of the job's run record.
func (s *Scheduler) History(name string) (JobHistory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.history[name]
	if !ok {
		return JobHistory{}, false
	}
	return *h, true
}

// Start begins dispatching schedules.
func (s *Scheduler) Start() {
	s.log.Info().Int("jobs", len(s.jobs)).Msg("scheduler starting")
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	s.log.Info().Msg("scheduler stopping")
	<-s.cron.Stop().Done()
}
