package taskx

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/logx"
)

// TaskFunc is one maintenance pass. Return nil on success; errors are
// logged and the task runs again at its next tick.
type TaskFunc func(ctx context.Context) error

// Task is a named periodic maintenance job.
type Task struct {
	Name     string
	Interval time.Duration
	Run      TaskFunc

	// RunAtStart triggers one immediate pass before the first tick.
	RunAtStart bool
}

// Runner executes registered tasks on their own tickers until the context
// is cancelled.
type Runner struct {
	mu      sync.Mutex
	tasks   []Task
	running bool
}

// NewRunner creates an empty runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Register adds a task. Must be called before Start.
func (r *Runner) Register(task Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
}

// Start runs all registered tasks. It blocks until ctx is cancelled and
// every task goroutine has drained.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return taskxErrors.New(ErrAlreadyRunning)
	}
	r.running = true
	tasks := make([]Task, len(r.tasks))
	copy(tasks, r.tasks)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	logx.Infof("taskx: starting %d maintenance tasks", len(tasks))

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			r.taskLoop(ctx, t)
		}(task)
	}

	<-ctx.Done()
	wg.Wait()
	logx.Info("taskx: all maintenance tasks stopped")
	return nil
}

func (r *Runner) taskLoop(ctx context.Context, t Task) {
	if t.RunAtStart {
		r.runOnce(ctx, t)
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx, t)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, t Task) {
	start := time.Now()
	if err := t.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		logx.WithError(err).WithField("task", t.Name).Warn("taskx: task failed")
		return
	}
	logx.WithFields(logx.Fields{
		"task":     t.Name,
		"duration": time.Since(start).String(),
	}).Debug("taskx: task completed")
}
