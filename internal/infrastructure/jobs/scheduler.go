// Package jobs runs the periodic maintenance work of the platform:
// access expiry, invite expiry, the outbox relay and table cleanup.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"lms/internal/core/security"
	"lms/internal/infrastructure/metrics"
	"lms/pkg/logger"
)

// Func does one pass and returns the number of rows it touched.
type Func func(ctx context.Context) (int64, error)

// Task is a named periodic job.
type Task struct {
	Name  string
	Every time.Duration
	Run   Func
}

// Scheduler runs tasks on fixed intervals. A task never overlaps itself:
// a run that is still going when the next tick fires is rescheduled.
type Scheduler struct {
	scheduler gocron.Scheduler
	metrics   *metrics.Metrics
	timeout   time.Duration

	mu    sync.RWMutex
	tasks map[string]Task
}

// New registers tasks. m may be nil.
func New(m *metrics.Metrics, timeout time.Duration, tasks ...Task) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	js := &Scheduler{scheduler: s, metrics: m, timeout: timeout, tasks: make(map[string]Task, len(tasks))}

	for _, t := range tasks {
		if t.Every <= 0 {
			return nil, fmt.Errorf("job %s: interval must be positive", t.Name)
		}
		if _, dup := js.tasks[t.Name]; dup {
			return nil, fmt.Errorf("job %s registered twice", t.Name)
		}
		js.tasks[t.Name] = t

		task := t
		_, err := s.NewJob(
			gocron.DurationJob(task.Every),
			gocron.NewTask(func() { _, _ = js.run(context.Background(), task) }),
			gocron.WithName(task.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, fmt.Errorf("register job %s: %w", task.Name, err)
		}
	}
	return js, nil
}

// Start begins ticking.
func (s *Scheduler) Start() {
	logger.Info(context.Background(), "starting job scheduler", "jobs", len(s.tasks))
	s.scheduler.Start()
}

// Shutdown waits for running jobs to finish.
func (s *Scheduler) Shutdown() error {
	logger.Info(context.Background(), "stopping job scheduler")
	return s.scheduler.Shutdown()
}

// Names lists the registered jobs.
func (s *Scheduler) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		out = append(out, name)
	}
	return out
}

// RunNow runs one job synchronously, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (int64, error) {
	s.mu.RLock()
	t, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("unknown job %q", name)
	}
	return s.run(ctx, t)
}

// run executes a task under the system scope.
func (s *Scheduler) run(ctx context.Context, t Task) (int64, error) {
	ctx = security.WithScope(ctx, security.SystemScope())
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	affected, err := t.Run(ctx)
	s.metrics.JobRun(t.Name, affected, err)
	if err != nil {
		logger.Error(ctx, "job failed", "job", t.Name, "error", err, "duration", time.Since(start))
		return affected, err
	}
	if affected > 0 {
		logger.Info(ctx, "job finished", "job", t.Name, "affected", affected, "duration", time.Since(start))
	}
	return affected, nil
}
