package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"camsession/internal/domain"
	"camsession/internal/infra/config"
)

// ScheduledAction identifies a type of scheduled action.
type ScheduledAction string

const (
	ActionSnapshot         ScheduledAction = "snapshot"
	ActionCatalogRetention ScheduledAction = "catalog_retention"
)

// ScheduledTask defines a recurring task.
type ScheduledTask struct {
	Name     string
	Schedule string // cron expression "*/5 * * * *" OR duration "30m"
	Action   ScheduledAction
	DeviceID string        // for snapshot
	MaxAge   time.Duration // for catalog_retention
	OneShot  bool
}

// TasksFromConfig converts configured tasks.
func TasksFromConfig(cfgs []config.ScheduledTaskConfig) []ScheduledTask {
	out := make([]ScheduledTask, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, ScheduledTask{
			Name:     c.Name,
			Schedule: c.Schedule,
			Action:   ScheduledAction(c.Action),
			DeviceID: c.DeviceID,
			MaxAge:   c.MaxAge,
			OneShot:  c.OneShot,
		})
	}
	return out
}

// ActionFunc runs one firing of a task.
type ActionFunc func(ctx context.Context, task ScheduledTask) error

// TaskFiredPayload is the payload of domain.EventTaskFired.
type TaskFiredPayload struct {
	Task       string `json:"task"`
	Action     string `json:"action"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// Scheduler runs tasks on a recurring schedule using cron expressions or durations.
type Scheduler struct {
	cron    *cron.Cron
	actions map[ScheduledAction]ActionFunc
	entries map[string]cron.EntryID // task name -> entry
	bus     domain.EventBus
	logger  *slog.Logger
	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler. bus may be nil.
func NewScheduler(bus domain.EventBus, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		actions: make(map[ScheduledAction]ActionFunc),
		entries: make(map[string]cron.EntryID),
		bus:     bus,
		logger:  logger,
	}
}

// RegisterAction registers a handler for a scheduled action type.
func (s *Scheduler) RegisterAction(action ScheduledAction, fn ActionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[action] = fn
}

// AddTask adds a scheduled task. The schedule can be a cron expression or a duration string.
func (s *Scheduler) AddTask(task ScheduledTask) error {
	const op = "Scheduler.AddTask"
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.Name == "" {
		return domain.NewSubSystemError("scheduler", op, domain.ErrInvalidInput, "task name is required")
	}
	if _, exists := s.entries[task.Name]; exists {
		return domain.NewSubSystemError("scheduler", op, domain.ErrInvalidInput, fmt.Sprintf("task %q already exists", task.Name))
	}
	fn, ok := s.actions[task.Action]
	if !ok {
		return domain.NewSubSystemError("scheduler", op, domain.ErrInvalidInput,
			fmt.Sprintf("unknown action %q for task %q", task.Action, task.Name))
	}
	schedule, err := parseSchedule(task.Schedule)
	if err != nil {
		return domain.NewSubSystemError("scheduler", op, domain.ErrInvalidInput,
			fmt.Sprintf("invalid schedule %q for task %q: %v", task.Schedule, task.Name, err))
	}

	var entryID cron.EntryID
	entryID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()

		if ctx == nil || ctx.Err() != nil {
			s.logger.Debug("scheduler stopped, skipping task", "task", task.Name)
			return
		}

		taskCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		s.fire(taskCtx, task, fn)

		if task.OneShot {
			s.cron.Remove(entryID)
			s.mu.Lock()
			delete(s.entries, task.Name)
			s.mu.Unlock()
		}
	}))
	s.entries[task.Name] = entryID

	s.logger.Info("task added to scheduler", "name", task.Name, "schedule", task.Schedule, "action", string(task.Action))
	return nil
}

func (s *Scheduler) fire(ctx context.Context, task ScheduledTask, fn ActionFunc) {
	start := time.Now()
	err := fn(ctx, task)
	payload := TaskFiredPayload{
		Task:       task.Name,
		Action:     string(task.Action),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		payload.Error = err.Error()
		s.logger.Warn("scheduled task failed", "task", task.Name, "error", err, "duration", time.Since(start))
	} else {
		s.logger.Info("scheduled task completed", "task", task.Name, "duration", time.Since(start))
	}
	if s.bus != nil {
		s.bus.Publish(ctx, domain.NewEvent(domain.EventTaskFired, task.DeviceID, 0, payload))
	}
}

// RemoveTask removes a task by name.
func (s *Scheduler) RemoveTask(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, ok := s.entries[name]
	if !ok {
		return domain.NewSubSystemError("scheduler", "Scheduler.RemoveTask", domain.ErrNotFound, fmt.Sprintf("task %q not found", name))
	}
	s.cron.Remove(entryID)
	delete(s.entries, name)
	s.logger.Info("task removed", "name", name)
	return nil
}

// Tasks returns the names of the scheduled tasks, sorted.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NextRun returns the next run time of a task, or nil when it is unknown or
// the scheduler is not running.
func (s *Scheduler) NextRun(name string) *time.Time {
	s.mu.Lock()
	entryID, ok := s.entries[name]
	s.mu.Unlock()

	if !ok {
		return nil
	}
	entry := s.cron.Entry(entryID)
	if entry.ID == 0 || entry.Next.IsZero() {
		return nil
	}
	t := entry.Next
	return &t
}

// Start begins running the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.started = true
	return nil
}

// Stop signals the scheduler to stop and waits for running jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.started = false
	s.mu.Unlock()

	// Running jobs take s.mu; wait outside it.
	<-s.cron.Stop().Done()
	return nil
}

// parseSchedule tries to parse a schedule string as a cron expression first,
// then falls back to time.ParseDuration.
func parseSchedule(schedule string) (cron.Schedule, error) {
	if schedule == "" {
		return nil, fmt.Errorf("empty schedule")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if sched, err := parser.Parse(schedule); err == nil {
		return sched, nil
	}

	dur, err := time.ParseDuration(schedule)
	if err != nil {
		return nil, fmt.Errorf("not a valid cron expression or duration: %q", schedule)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration must be positive: %q", schedule)
	}
	return &constantDelay{delay: dur}, nil
}

// constantDelay implements cron.Schedule for a fixed interval.
// Unlike cron.Every(), it supports sub-second durations.
type constantDelay struct {
	delay time.Duration
}

func (d *constantDelay) Next(t time.Time) time.Time {
	return t.Add(d.delay)
}
