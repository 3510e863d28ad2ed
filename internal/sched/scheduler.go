// Package sched runs the core's periodic entry points on fixed intervals.
// It is deliberately framework-free: any task is just a name, an interval
// and an idempotent func, so swapping in an external scheduler means
// calling the same funcs from somewhere else.
package sched

import (
	"context"
	"sync"
	"time"

	"riskcore/internal/ports"
)

// Task is one periodic job.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives a set of tasks, each on its own ticker. Stopping waits
// for in-flight runs to complete rather than aborting them mid-write.
type Scheduler struct {
	logger ports.Logger
	tasks  []Task

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a scheduler.
func New(logger ports.Logger) *Scheduler {
	return &Scheduler{
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Add registers a task. Must be called before Start.
func (s *Scheduler) Add(task Task) {
	s.tasks = append(s.tasks, task)
}

// Start launches every task loop and returns. Use Stop or cancel ctx to
// shut down.
func (s *Scheduler) Start(ctx context.Context) {
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.runLoop(ctx, task)
	}
}

func (s *Scheduler) runLoop(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "scheduler task started", map[string]interface{}{
		"task":     task.Name,
		"interval": task.Interval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "scheduler task stopped", map[string]interface{}{"task": task.Name})
			return
		case <-s.stopCh:
			s.logger.Info(ctx, "scheduler task stopped", map[string]interface{}{"task": task.Name})
			return
		case <-ticker.C:
			// Errors are logged and retried on the next tick; a periodic
			// task has no one else to report to.
			if err := task.Run(ctx); err != nil {
				s.logger.Error(ctx, err, "scheduler task run failed", map[string]interface{}{
					"task": task.Name,
				})
			}
		}
	}
}

// Stop signals every loop to exit and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
