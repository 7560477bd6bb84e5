package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/logging"
	"github.com/mrlokans/librarian/internal/tasks"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Enqueuer hands tasks to the queue. Implemented by tasks.Client.
type Enqueuer interface {
	Enqueue(ctx context.Context, tasks ...backlite.Task) ([]string, error)
}

// Job is a named periodic task.
type Job struct {
	Name     string
	Schedule string // five-field cron expression
	Task     func() backlite.Task
}

// MaintenanceJobs returns the jobs enabled by cfg. Pending request expiry is
// scheduled only when LENDING_PENDING_EXPIRY is positive.
func MaintenanceJobs(cfg *config.Config) []Job {
	jobs := []Job{{
		Name:     tasks.TaskCleanupAuditEvents,
		Schedule: cfg.Scheduler.AuditCleanupSchedule,
		Task: func() backlite.Task {
			return tasks.CleanupAuditEventsTask{RetentionDays: cfg.Audit.RetentionDays}
		},
	}}

	if cfg.Lending.PendingExpiry > 0 {
		maxAge := cfg.Lending.PendingExpiry
		jobs = append(jobs, Job{
			Name:     tasks.TaskExpirePendingRequests,
			Schedule: cfg.Scheduler.ExpirePendingSchedule,
			Task: func() backlite.Task {
				return tasks.ExpirePendingRequestsTask{MaxAge: maxAge}
			},
		})
	}
	return jobs
}

// MaintenanceScheduler enqueues maintenance tasks on cron schedules. The
// work itself runs on the task queue workers.
type MaintenanceScheduler struct {
	enqueuer Enqueuer
	jobs     []Job

	cron      *cron.Cron
	entryIDs  map[string]cron.EntryID
	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
}

func NewMaintenanceScheduler(enqueuer Enqueuer, jobs ...Job) *MaintenanceScheduler {
	l := newCronLogger(logging.Default())
	return &MaintenanceScheduler{
		enqueuer: enqueuer,
		jobs:     jobs,
		entryIDs: make(map[string]cron.EntryID),
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
	}
}

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// Start registers every job and starts the cron loop. The scheduler stops
// when ctx is cancelled.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	for _, job := range s.jobs {
		if err := ValidateSchedule(job.Schedule); err != nil {
			return fmt.Errorf("invalid cron schedule %q for %s: %w", job.Schedule, job.Name, err)
		}
		job := job
		id, err := s.cron.AddFunc(job.Schedule, func() { s.enqueue(job) })
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
		s.entryIDs[job.Name] = id
	}

	s.ctx = ctx
	s.cron.Start()
	s.isRunning = true

	log := logging.FromContext(ctx)
	for _, job := range s.jobs {
		log.Info().
			Str("job", job.Name).
			Str("schedule", job.Schedule).
			Time("next_run", s.cron.Entry(s.entryIDs[job.Name]).Next).
			Msg("maintenance job scheduled")
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for in-flight enqueues and stops the cron loop.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	for name, id := range s.entryIDs {
		s.cron.Remove(id)
		delete(s.entryIDs, name)
	}
	s.isRunning = false

	logging.Default().Info().Msg("maintenance scheduler stopped")
}

// RunNow enqueues the named job immediately.
func (s *MaintenanceScheduler) RunNow(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name == name {
			_, err := s.enqueuer.Enqueue(ctx, job.Task())
			return err
		}
	}
	return fmt.Errorf("unknown maintenance job %q", name)
}

// Jobs returns the configured jobs.
func (s *MaintenanceScheduler) Jobs() []Job {
	return append([]Job(nil), s.jobs...)
}

func (s *MaintenanceScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the named job fires next, or nil when the scheduler
// is stopped or the job is unknown.
func (s *MaintenanceScheduler) NextRun(name string) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	id, ok := s.entryIDs[name]
	if !ok {
		return nil
	}
	next := s.cron.Entry(id).Next
	return &next
}

func (s *MaintenanceScheduler) enqueue(job Job) {
	// s.ctx is written only before the cron loop starts.
	ctx := s.ctx
	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}

	log := logging.FromContext(ctx)
	ids, err := s.enqueuer.Enqueue(ctx, job.Task())
	if err != nil {
		log.Error().Err(err).Str("job", job.Name).Msg("failed to enqueue maintenance task")
		return
	}
	log.Debug().Str("job", job.Name).Strs("task_ids", ids).Msg("maintenance task enqueued")
}
