package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Task is one scheduled job: the comment mirror tick, the settings
// refresh, journal pruning.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives recurring tasks on independent timers. Each timer
// re-arms after its task returns, so a slow run never stacks. Rearm
// changes a task's interval at runtime, which takes effect
// immediately.
type Scheduler struct {
	logger *slog.Logger

	mu     sync.Mutex
	tasks  map[string]*scheduledTask
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active bool
}

type scheduledTask struct {
	task  Task
	rearm chan time.Duration
}

// NewScheduler builds an empty scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{logger: logger, tasks: map[string]*scheduledTask{}}
}

// Add registers a task. Adding after Start is an error.
func (s *Scheduler) Add(task Task) error {
	if task.Name == "" || task.Run == nil || task.Interval <= 0 {
		return errors.New("scheduler: task needs a name, an interval, and a run function")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return errors.New("scheduler: already running")
	}
	if _, dup := s.tasks[task.Name]; dup {
		return errors.New("scheduler: duplicate task " + task.Name)
	}
	s.tasks[task.Name] = &scheduledTask{
		task:  task,
		rearm: make(chan time.Duration, 1),
	}
	return nil
}

// Start launches one goroutine per task.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return errors.New("scheduler: already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.active = true
	for _, st := range s.tasks {
		s.wg.Add(1)
		go func(st *scheduledTask) {
			defer s.wg.Done()
			s.runTask(runCtx, st)
		}(st)
	}
	return nil
}

// Stop cancels every task and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.active = false
	s.mu.Unlock()
	s.wg.Wait()
}

// Rearm changes a task's interval; the pending timer restarts with
// the new duration.
func (s *Scheduler) Rearm(name string, interval time.Duration) {
	s.mu.Lock()
	st, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok || interval <= 0 {
		return
	}
	select {
	case st.rearm <- interval:
	default:
	}
}

func (s *Scheduler) runTask(ctx context.Context, st *scheduledTask) {
	interval := st.task.Interval
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case next := <-st.rearm:
			interval = next
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(interval)
		case <-timer.C:
			start := time.Now()
			if err := st.task.Run(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("scheduled task failed",
					"task", st.task.Name, "error", err)
			} else {
				s.logger.Debug("scheduled task finished",
					"task", st.task.Name,
					"duration", time.Since(start).Round(time.Millisecond))
			}
			timer.Reset(interval)
		}
	}
}
