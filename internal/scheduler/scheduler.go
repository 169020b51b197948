// Package scheduler runs named jobs on cron schedules. A job whose previous
// run is still in progress when its schedule fires again is skipped for that
// tick.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/logging"
)

// Func is the work a scheduled job performs. ctx is canceled when the
// scheduler stops.
type Func func(ctx context.Context) error

// Scheduler manages scheduled jobs.
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[uuid.UUID]*ScheduledJob
	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *logging.Logger
}

// ScheduledJob is a snapshot of one registered job.
type ScheduledJob struct {
	ID       uuid.UUID
	Name     string
	Schedule string
	CronID   cron.EntryID
	LastRun  time.Time
	NextRun  time.Time
	Runs     int
	Skipped  int
	LastErr  error
	Running  bool

	fn Func
}

// New creates a stopped scheduler.
func New(logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(),
		jobs:   make(map[uuid.UUID]*ScheduledJob),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.WithComponent("scheduler"),
	}
}

// Add registers fn under name with a standard cron expression or a
// descriptor such as "@every 1h".
func (s *Scheduler) Add(cronExpr, name string, fn Func) (uuid.UUID, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		cfgErr := errors.WrapConfigError(errors.CodeValidation, "Invalid cron expression", err)
		cfgErr.Field = "schedule"
		cfgErr.Value = cronExpr
		return uuid.Nil, cfgErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job := &ScheduledJob{
		ID:       uuid.New(),
		Name:     name,
		Schedule: cronExpr,
		NextRun:  schedule.Next(time.Now()),
		fn:       fn,
	}
	id := job.ID
	job.CronID = s.cron.Schedule(schedule, cron.FuncJob(func() { s.run(id) }))
	s.jobs[id] = job

	s.logger.Info("Added scheduled job", "name", name, "schedule", cronExpr, "next_run", job.NextRun)
	return id, nil
}

// Remove unregisters a job. A run in progress is left to finish.
func (s *Scheduler) Remove(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	s.cron.Remove(job.CronID)
	delete(s.jobs, id)

	s.logger.Info("Removed scheduled job", "name", job.Name)
	return nil
}

// Jobs returns snapshots of every registered job ordered by name.
func (s *Scheduler) Jobs() []ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		snap := *job
		snap.fn = nil
		if entry := s.cron.Entry(job.CronID); !entry.Next.IsZero() {
			snap.NextRun = entry.Next
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start begins firing schedules.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("scheduler has been stopped")
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop halts the schedules, cancels running jobs and waits for them to
// return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.cancel()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// RunNow runs a job immediately on the calling goroutine, subject to the
// same overlap rule as scheduled runs. It reports whether the job ran.
func (s *Scheduler) RunNow(id uuid.UUID) (bool, error) {
	s.mu.Lock()
	_, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("job %s not found", id)
	}
	return s.run(id), nil
}

func (s *Scheduler) run(id uuid.UUID) bool {
	job, ok := s.begin(id)
	if !ok {
		return false
	}

	s.logger.Info("Running scheduled job", "name", job.Name)
	start := time.Now()
	err := job.fn(s.ctx)

	s.mu.Lock()
	job.Running = false
	job.LastErr = err
	job.Runs++
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Scheduled job failed", "name", job.Name, "error", err, "duration", time.Since(start))
		return true
	}
	s.logger.Info("Scheduled job completed", "name", job.Name, "duration", time.Since(start))
	return true
}

// begin marks the job running unless it already is.
func (s *Scheduler) begin(id uuid.UUID) (*ScheduledJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	if job.Running {
		job.Skipped++
		s.logger.Warn("Scheduled job is already running, skipping", "name", job.Name)
		return nil, false
	}
	job.Running = true
	job.LastRun = time.Now()
	return job, true
}
