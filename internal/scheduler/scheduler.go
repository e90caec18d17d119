// Package scheduler runs mediabridge's recurring maintenance tasks on cron
// schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// TaskFunc is one run of a task.
type TaskFunc func(ctx context.Context) error

// TaskStatus describes a registered task.
type TaskStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	NextRun   time.Time `json:"nextRun"`
	LastRun   time.Time `json:"lastRun,omitempty"`
	LastError string    `json:"lastError,omitempty"`
	Runs      int64     `json:"runs"`
}

type task struct {
	name     string
	schedule string
	fn       TaskFunc
	entryID  cron.EntryID

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
	runs    int64
}

// Scheduler manages cron-scheduled tasks. Overlapping runs of one task are
// skipped rather than queued.
type Scheduler struct {
	mu sync.RWMutex

	cron   *cron.Cron
	parser cron.Parser
	tasks  map[string]*task
	logger *slog.Logger

	// Running state
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewScheduler creates a scheduler using five-field cron expressions.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron:   cron.New(cron.WithParser(parser)),
		parser: parser,
		tasks:  make(map[string]*task),
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

// ValidateSchedule checks a cron expression.
func (s *Scheduler) ValidateSchedule(spec string) error {
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// AddTask registers fn to run on spec. Names are unique.
func (s *Scheduler) AddTask(name, spec string, fn TaskFunc) error {
	schedule, err := s.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task %q already registered", name)
	}

	t := &task{name: name, schedule: spec, fn: fn}
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		s.run(t)
	}))
	t.entryID = s.cron.Schedule(schedule, job)
	s.tasks[name] = t
	return nil
}

// RunNow executes a task immediately and returns its error.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	t, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("task %q not registered", name)
	}
	return s.execute(ctx, t)
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.cron.Start()

	s.logger.Info("scheduler started", slog.Int("tasks", len(s.tasks)))
	return nil
}

// Stop stops scheduling and waits for running tasks to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Tasks returns the status of every task ordered by name.
func (s *Scheduler) Tasks() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		t.mu.Lock()
		st := TaskStatus{
			Name:     t.name,
			Schedule: t.schedule,
			NextRun:  s.cron.Entry(t.entryID).Next,
			LastRun:  t.lastRun,
			Runs:     t.runs,
		}
		if t.lastErr != nil {
			st.LastError = t.lastErr.Error()
		}
		t.mu.Unlock()
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) run(t *task) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}
	_ = s.execute(ctx, t)
}

func (s *Scheduler) execute(ctx context.Context, t *task) error {
	start := time.Now()
	err := t.fn(ctx)

	t.mu.Lock()
	t.lastRun = start
	t.lastErr = err
	t.runs++
	t.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled task failed",
			slog.String("task", t.name),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err))
		return err
	}
	s.logger.Debug("scheduled task completed",
		slog.String("task", t.name),
		slog.Duration("duration", time.Since(start)))
	return nil
}
